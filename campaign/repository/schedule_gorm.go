package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/pkg/timeutils"
)

// --- Persistence Model ---

type scheduleModel struct {
	ID                 string `gorm:"primaryKey"`
	PageID             string `gorm:"index:idx_schedules_page;not null"`
	TargetGroupID      string `gorm:"index:idx_schedules_group"`
	Name               string
	Kind               string `gorm:"index:idx_schedules_kind;not null"`
	ScheduledAt        *time.Time
	ThresholdMagnitude int
	ThresholdUnit      string
	Repeat             string     `gorm:"default:'once'"`
	Weekdays           string     `gorm:"type:text;default:'[]'"` // JSON
	EndAt              *time.Time
	Messages           string `gorm:"type:text;default:'[]'"` // JSON
	// No column default: gorm omits zero-valued plain fields on insert,
	// so a default would silently flip rows created inactive.
	IsActive           bool   `gorm:"index:idx_schedules_active"`
	ActivatedAt        time.Time
	LastRunAt          *time.Time
	NextRunAt          *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (scheduleModel) TableName() string {
	return "schedules"
}

// --- Repository Implementation ---

type ScheduleGormRepository struct {
	db *gorm.DB
}

func NewScheduleGormRepository(db *gorm.DB) *ScheduleGormRepository {
	return &ScheduleGormRepository{db: db}
}

func (r *ScheduleGormRepository) InitSchema(ctx context.Context) error {
	// GORM AutoMigrate handles creation and schema updates
	return r.db.WithContext(ctx).AutoMigrate(&scheduleModel{})
}

func (r *ScheduleGormRepository) Create(ctx context.Context, schedule *domain.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	if schedule.ActivatedAt.IsZero() {
		schedule.ActivatedAt = now
	}

	model, err := toScheduleModel(schedule)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ScheduleGormRepository) Update(ctx context.Context, schedule *domain.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	model, err := toScheduleModel(schedule)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&scheduleModel{}).Where("id = ?", schedule.ID).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&scheduleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleGormRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	var m scheduleModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}
	return fromScheduleModel(m)
}

func (r *ScheduleGormRepository) List(ctx context.Context, pageID string) ([]*domain.Schedule, error) {
	var models []scheduleModel
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if pageID != "" {
		query = query.Where("page_id = ?", pageID)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromScheduleModels(models)
}

func (r *ScheduleGormRepository) ListActive(ctx context.Context) ([]*domain.Schedule, error) {
	var models []scheduleModel
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromScheduleModels(models)
}

func (r *ScheduleGormRepository) UpdateRunState(ctx context.Context, id string, lastRun, nextRun *time.Time, isActive bool) error {
	updates := map[string]any{
		"last_run_at": lastRun,
		"next_run_at": nextRun,
		"is_active":   isActive,
		"updated_at":  time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Model(&scheduleModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// --- Mappers ---

func toScheduleModel(s *domain.Schedule) (scheduleModel, error) {
	weekdays, err := json.Marshal(s.Recurrence.Weekdays)
	if err != nil {
		return scheduleModel{}, err
	}
	messages, err := json.Marshal(s.Messages)
	if err != nil {
		return scheduleModel{}, err
	}

	return scheduleModel{
		ID:                 s.ID,
		PageID:             s.PageID,
		TargetGroupID:      s.TargetGroupID,
		Name:               s.Name,
		Kind:               string(s.Kind),
		ScheduledAt:        s.ScheduledAt,
		ThresholdMagnitude: s.Threshold.Magnitude,
		ThresholdUnit:      string(s.Threshold.Unit),
		Repeat:             string(s.Recurrence.Repeat),
		Weekdays:           string(weekdays),
		EndAt:              s.Recurrence.EndAt,
		Messages:           string(messages),
		IsActive:           s.IsActive,
		ActivatedAt:        s.ActivatedAt,
		LastRunAt:          s.LastRunAt,
		NextRunAt:          s.NextRunAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func fromScheduleModel(m scheduleModel) (*domain.Schedule, error) {
	var weekdays []int
	if m.Weekdays != "" {
		if err := json.Unmarshal([]byte(m.Weekdays), &weekdays); err != nil {
			return nil, err
		}
	}
	var messages []domain.MessageSpec
	if m.Messages != "" {
		if err := json.Unmarshal([]byte(m.Messages), &messages); err != nil {
			return nil, err
		}
	}

	repeat := domain.RepeatRule(m.Repeat)
	if repeat == "" {
		repeat = domain.RepeatOnce
	}

	return &domain.Schedule{
		ID:            m.ID,
		PageID:        m.PageID,
		TargetGroupID: m.TargetGroupID,
		Name:          m.Name,
		Kind:          domain.ScheduleKind(m.Kind),
		ScheduledAt:   m.ScheduledAt,
		Threshold: domain.InactivityThreshold{
			Magnitude: m.ThresholdMagnitude,
			Unit:      timeutils.Unit(m.ThresholdUnit),
		},
		Recurrence: domain.Recurrence{
			Repeat:   repeat,
			Weekdays: weekdays,
			EndAt:    m.EndAt,
		},
		Messages:    messages,
		IsActive:    m.IsActive,
		ActivatedAt: m.ActivatedAt,
		LastRunAt:   m.LastRunAt,
		NextRunAt:   m.NextRunAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func fromScheduleModels(models []scheduleModel) ([]*domain.Schedule, error) {
	out := make([]*domain.Schedule, 0, len(models))
	for _, m := range models {
		s, err := fromScheduleModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
