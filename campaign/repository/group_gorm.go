package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

// --- Persistence Models ---

type groupModel struct {
	ID        string `gorm:"primaryKey"`
	PageID    string `gorm:"index:idx_groups_page;not null"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (groupModel) TableName() string {
	return "recipient_groups"
}

type groupMemberModel struct {
	GroupID     string `gorm:"primaryKey"`
	RecipientID string `gorm:"primaryKey"`
	AddedAt     time.Time
}

func (groupMemberModel) TableName() string {
	return "group_members"
}

// --- Repository Implementation ---

// GroupGormRepository is the recipient directory. Membership is curated
// through the API, never derived from live conversation lists, so
// due-ness evaluation stays decoupled from Graph availability.
type GroupGormRepository struct {
	db *gorm.DB
}

func NewGroupGormRepository(db *gorm.DB) *GroupGormRepository {
	return &GroupGormRepository{db: db}
}

func (r *GroupGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&groupModel{}, &groupMemberModel{})
}

func (r *GroupGormRepository) CreateGroup(ctx context.Context, group *domain.RecipientGroup) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	model := groupModel{
		ID:        group.ID,
		PageID:    group.PageID,
		Name:      group.Name,
		CreatedAt: group.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GroupGormRepository) DeleteGroup(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&groupMemberModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&groupModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGroupNotFound
		}
		return nil
	})
}

func (r *GroupGormRepository) GetGroup(ctx context.Context, id string) (*domain.RecipientGroup, error) {
	var m groupModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return &domain.RecipientGroup{ID: m.ID, PageID: m.PageID, Name: m.Name, CreatedAt: m.CreatedAt}, nil
}

func (r *GroupGormRepository) ListGroups(ctx context.Context, pageID string) ([]domain.RecipientGroup, error) {
	var models []groupModel
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if pageID != "" {
		query = query.Where("page_id = ?", pageID)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	groups := make([]domain.RecipientGroup, 0, len(models))
	for _, m := range models {
		groups = append(groups, domain.RecipientGroup{ID: m.ID, PageID: m.PageID, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return groups, nil
}

func (r *GroupGormRepository) AddMember(ctx context.Context, groupID, recipientID string) error {
	member := groupMemberModel{
		GroupID:     groupID,
		RecipientID: recipientID,
		AddedAt:     time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(&member).Error
	if err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "duplicate key value")) {
		return nil // Already a member
	}
	return err
}

func (r *GroupGormRepository) RemoveMember(ctx context.Context, groupID, recipientID string) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND recipient_id = ?", groupID, recipientID).
		Delete(&groupMemberModel{}).Error
}

// Resolve returns member PSIDs in insertion order.
func (r *GroupGormRepository) Resolve(ctx context.Context, groupID string) ([]string, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&groupModel{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrGroupNotFound
	}

	var members []groupMemberModel
	if err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("added_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, m.RecipientID)
	}
	return recipients, nil
}
