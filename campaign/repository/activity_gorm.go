package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

// --- Persistence Model ---

type activityModel struct {
	PageID          string `gorm:"primaryKey"`
	RecipientID     string `gorm:"primaryKey"`
	LastActivityAt  time.Time
	ConversationRef string
	ObservedAt      time.Time
}

func (activityModel) TableName() string {
	return "activity_records"
}

// --- Repository Implementation ---

type ActivityGormRepository struct {
	db *gorm.DB
}

func NewActivityGormRepository(db *gorm.DB) *ActivityGormRepository {
	return &ActivityGormRepository{db: db}
}

func (r *ActivityGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&activityModel{})
}

func (r *ActivityGormRepository) Get(ctx context.Context, pageID, recipientID string) (*domain.ActivityRecord, error) {
	var m activityModel
	err := r.db.WithContext(ctx).
		Where("page_id = ? AND recipient_id = ?", pageID, recipientID).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	record := fromActivityModel(m)
	return &record, nil
}

// Upsert keeps the freshest inbound instant. An observation older than
// the stored one only refreshes observed_at.
func (r *ActivityGormRepository) Upsert(ctx context.Context, record *domain.ActivityRecord) error {
	if record.ObservedAt.IsZero() {
		record.ObservedAt = time.Now().UTC()
	}
	model := activityModel{
		PageID:          record.PageID,
		RecipientID:     record.RecipientID,
		LastActivityAt:  record.LastActivityAt.UTC(),
		ConversationRef: record.ConversationRef,
		ObservedAt:      record.ObservedAt,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing activityModel
		err := tx.Where("page_id = ? AND recipient_id = ?", model.PageID, model.RecipientID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "page_id"}, {Name: "recipient_id"}},
				DoNothing: true,
			}).Create(&model).Error
		}
		if err != nil {
			return err
		}
		updates := map[string]any{"observed_at": model.ObservedAt}
		if model.LastActivityAt.After(existing.LastActivityAt) {
			updates["last_activity_at"] = model.LastActivityAt
			updates["conversation_ref"] = model.ConversationRef
		}
		return tx.Model(&activityModel{}).
			Where("page_id = ? AND recipient_id = ?", model.PageID, model.RecipientID).
			Updates(updates).Error
	})
}

func (r *ActivityGormRepository) ListByPage(ctx context.Context, pageID string) ([]domain.ActivityRecord, error) {
	var models []activityModel
	if err := r.db.WithContext(ctx).Where("page_id = ?", pageID).Order("last_activity_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.ActivityRecord, 0, len(models))
	for _, m := range models {
		records = append(records, fromActivityModel(m))
	}
	return records, nil
}

func fromActivityModel(m activityModel) domain.ActivityRecord {
	return domain.ActivityRecord{
		PageID:          m.PageID,
		RecipientID:     m.RecipientID,
		LastActivityAt:  m.LastActivityAt,
		ConversationRef: m.ConversationRef,
		ObservedAt:      m.ObservedAt,
	}
}
