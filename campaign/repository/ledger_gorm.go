package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type ledgerModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ScheduleID   string `gorm:"uniqueIndex:idx_ledger_entry,priority:1;index:idx_ledger_schedule;not null"`
	RecipientID  string `gorm:"uniqueIndex:idx_ledger_entry,priority:2;not null"`
	PeriodMarker string `gorm:"uniqueIndex:idx_ledger_entry,priority:3;not null"`
	MarkedAt     time.Time
}

func (ledgerModel) TableName() string {
	return "dedup_ledger"
}

// --- Repository Implementation ---

// DedupLedgerGormRepository is the at-most-once guard. The unique index
// over (schedule_id, recipient_id, period_marker) plus insert-on-conflict
// makes MarkSent atomic: exactly one concurrent caller wins.
type DedupLedgerGormRepository struct {
	db *gorm.DB
}

func NewDedupLedgerGormRepository(db *gorm.DB) *DedupLedgerGormRepository {
	return &DedupLedgerGormRepository{db: db}
}

func (r *DedupLedgerGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ledgerModel{})
}

func (r *DedupLedgerGormRepository) IsSent(ctx context.Context, scheduleID, recipientID, periodMarker string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ledgerModel{}).
		Where("schedule_id = ? AND recipient_id = ? AND period_marker = ?", scheduleID, recipientID, periodMarker).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSent records the entry if absent. Returns true only when this
// call created it; a false return means another flow already holds the
// period and the caller must not send.
func (r *DedupLedgerGormRepository) MarkSent(ctx context.Context, scheduleID, recipientID, periodMarker string) (bool, error) {
	entry := ledgerModel{
		ScheduleID:   scheduleID,
		RecipientID:  recipientID,
		PeriodMarker: periodMarker,
		MarkedAt:     time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}, {Name: "recipient_id"}, {Name: "period_marker"}},
		DoNothing: true,
	}).Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Reset clears every entry for a schedule. Called on edit and
// reactivation so recipients become eligible again.
func (r *DedupLedgerGormRepository) Reset(ctx context.Context, scheduleID string) error {
	return r.db.WithContext(ctx).Where("schedule_id = ?", scheduleID).Delete(&ledgerModel{}).Error
}
