package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

// --- Persistence Model ---

type deliveryLogModel struct {
	ID          string `gorm:"primaryKey"`
	ScheduleID  string `gorm:"index:idx_delivery_schedule"`
	PageID      string `gorm:"index:idx_delivery_page;not null"`
	RecipientID string `gorm:"index:idx_delivery_recipient;not null"`
	MessageKind string
	Excerpt     string `gorm:"type:text"`
	Status      string `gorm:"index:idx_delivery_status;not null"`
	Error       string `gorm:"type:text"`
	SentAt      time.Time
}

func (deliveryLogModel) TableName() string {
	return "delivery_logs"
}

// --- Repository Implementation ---

type DeliveryLogGormRepository struct {
	db *gorm.DB
}

func NewDeliveryLogGormRepository(db *gorm.DB) *DeliveryLogGormRepository {
	return &DeliveryLogGormRepository{db: db}
}

func (r *DeliveryLogGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&deliveryLogModel{})
}

func (r *DeliveryLogGormRepository) Append(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	model := deliveryLogModel{
		ID:          entry.ID,
		ScheduleID:  entry.ScheduleID,
		PageID:      entry.PageID,
		RecipientID: entry.RecipientID,
		MessageKind: string(entry.MessageKind),
		Excerpt:     entry.Excerpt,
		Status:      string(entry.Status),
		Error:       entry.Error,
		SentAt:      entry.SentAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *DeliveryLogGormRepository) Find(ctx context.Context, filter domain.LogFilter) ([]domain.DeliveryLogEntry, error) {
	query := r.db.WithContext(ctx).Model(&deliveryLogModel{}).Order("sent_at DESC")
	if filter.ScheduleID != "" {
		query = query.Where("schedule_id = ?", filter.ScheduleID)
	}
	if filter.PageID != "" {
		query = query.Where("page_id = ?", filter.PageID)
	}
	if filter.RecipientID != "" {
		query = query.Where("recipient_id = ?", filter.RecipientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query = query.Limit(limit)

	var models []deliveryLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.DeliveryLogEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, domain.DeliveryLogEntry{
			ID:          m.ID,
			ScheduleID:  m.ScheduleID,
			PageID:      m.PageID,
			RecipientID: m.RecipientID,
			MessageKind: domain.MessageKind(m.MessageKind),
			Excerpt:     m.Excerpt,
			Status:      domain.DeliveryStatus(m.Status),
			Error:       m.Error,
			SentAt:      m.SentAt,
		})
	}
	return entries, nil
}

func (r *DeliveryLogGormRepository) Stats(ctx context.Context, pageID string) (domain.DeliveryStats, error) {
	stats := domain.DeliveryStats{PageID: pageID}

	base := r.db.WithContext(ctx).Model(&deliveryLogModel{})
	if pageID != "" {
		base = base.Where("page_id = ?", pageID)
	}
	if err := base.Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	grouped := r.db.WithContext(ctx).Model(&deliveryLogModel{}).
		Select("status, count(*) as count").Group("status")
	if pageID != "" {
		grouped = grouped.Where("page_id = ?", pageID)
	}
	if err := grouped.Find(&counts).Error; err != nil {
		return stats, err
	}
	for _, c := range counts {
		switch domain.DeliveryStatus(c.Status) {
		case domain.DeliverySent:
			stats.Sent = c.Count
		case domain.DeliveryFailed:
			stats.Failed = c.Count
		}
	}
	return stats, nil
}

func (r *DeliveryLogGormRepository) DeleteBySchedule(ctx context.Context, scheduleID string) error {
	return r.db.WithContext(ctx).Where("schedule_id = ?", scheduleID).Delete(&deliveryLogModel{}).Error
}
