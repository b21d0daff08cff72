package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-fbm/customers/domain"
	"github.com/AzielCF/az-fbm/pkg/crypto"
)

// --- Persistence Model ---

type pageModel struct {
	ID          string `gorm:"primaryKey"` // Facebook page ID
	Name        string
	AccessToken string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (pageModel) TableName() string {
	return "pages"
}

// --- Repository Implementation ---

// PageGormRepository is the page registry. Tokens live here instead of
// an in-memory map so they survive restarts and stay query-able per
// page. Access tokens are encrypted at rest when an encryption key is
// configured.
type PageGormRepository struct {
	db *gorm.DB
}

func NewPageGormRepository(db *gorm.DB) *PageGormRepository {
	return &PageGormRepository{db: db}
}

func (r *PageGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&pageModel{})
}

func (r *PageGormRepository) Save(ctx context.Context, page *domain.Page) error {
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	token, err := crypto.Encrypt(page.AccessToken)
	if err != nil {
		return err
	}
	model := pageModel{
		ID:          page.ID,
		Name:        page.Name,
		AccessToken: token,
		CreatedAt:   page.CreatedAt,
		UpdatedAt:   page.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "access_token", "updated_at"}),
	}).Create(&model).Error
}

func (r *PageGormRepository) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	var m pageModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrPageNotFound
		}
		return nil, err
	}
	token, err := crypto.Decrypt(m.AccessToken)
	if err != nil {
		return nil, err
	}
	return &domain.Page{ID: m.ID, Name: m.Name, AccessToken: token, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *PageGormRepository) List(ctx context.Context) ([]domain.Page, error) {
	var models []pageModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(models))
	for _, m := range models {
		token, err := crypto.Decrypt(m.AccessToken)
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.Page{ID: m.ID, Name: m.Name, AccessToken: token, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt})
	}
	return pages, nil
}

func (r *PageGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&pageModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}
