package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-fbm/customers/domain"
)

// --- Persistence Model ---

type customerModel struct {
	ID            string `gorm:"primaryKey"`
	PageID        string `gorm:"uniqueIndex:idx_customers_page_psid,priority:1;not null"`
	// gorm's initialism handling would otherwise name the column ps_id,
	// breaking the raw psid references in the conflict and where clauses.
	PSID          string `gorm:"column:psid;uniqueIndex:idx_customers_page_psid,priority:2;not null"`
	Name          string
	CurrentTier   string `gorm:"index:idx_customers_tier;default:'new'"`
	LastContactAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (customerModel) TableName() string {
	return "customers"
}

// --- Repository Implementation ---

type CustomerGormRepository struct {
	db *gorm.DB
}

func NewCustomerGormRepository(db *gorm.DB) *CustomerGormRepository {
	return &CustomerGormRepository{db: db}
}

func (r *CustomerGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&customerModel{})
}

// Upsert inserts the customer or refreshes name/last-contact on the
// existing row. Tier is preserved on conflict; classification owns it.
func (r *CustomerGormRepository) Upsert(ctx context.Context, customer *domain.Customer) error {
	now := time.Now().UTC()
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	if customer.CurrentTier == "" {
		customer.CurrentTier = domain.TierNew
	}

	model := customerModel{
		ID:            customer.ID,
		PageID:        customer.PageID,
		PSID:          customer.PSID,
		Name:          customer.Name,
		CurrentTier:   string(customer.CurrentTier),
		LastContactAt: customer.LastContactAt,
		CreatedAt:     customer.CreatedAt,
		UpdatedAt:     customer.UpdatedAt,
	}

	assignments := map[string]any{"updated_at": model.UpdatedAt}
	if model.Name != "" {
		assignments["name"] = model.Name
	}
	if model.LastContactAt != nil {
		assignments["last_contact_at"] = model.LastContactAt
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_id"}, {Name: "psid"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&model).Error
}

func (r *CustomerGormRepository) GetByPSID(ctx context.Context, pageID, psid string) (*domain.Customer, error) {
	var m customerModel
	err := r.db.WithContext(ctx).Where("page_id = ? AND psid = ?", pageID, psid).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	customer := fromCustomerModel(m)
	return &customer, nil
}

func (r *CustomerGormRepository) ListByPage(ctx context.Context, pageID string) ([]domain.Customer, error) {
	var models []customerModel
	query := r.db.WithContext(ctx).Order("updated_at DESC")
	if pageID != "" {
		query = query.Where("page_id = ?", pageID)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	customers := make([]domain.Customer, 0, len(models))
	for _, m := range models {
		customers = append(customers, fromCustomerModel(m))
	}
	return customers, nil
}

func (r *CustomerGormRepository) UpdateTier(ctx context.Context, pageID, psid string, tier domain.Tier) error {
	result := r.db.WithContext(ctx).Model(&customerModel{}).
		Where("page_id = ? AND psid = ?", pageID, psid).
		Updates(map[string]any{"current_tier": string(tier), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

func fromCustomerModel(m customerModel) domain.Customer {
	return domain.Customer{
		ID:            m.ID,
		PageID:        m.PageID,
		PSID:          m.PSID,
		Name:          m.Name,
		CurrentTier:   domain.Tier(m.CurrentTier),
		LastContactAt: m.LastContactAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
