package domain

import (
	"context"
	"errors"
	"time"
)

// Tier is a customer's behavioral segment, assigned by the hybrid
// classifier (keyword rules, recency, LLM fallback).
type Tier string

const (
	TierNew     Tier = "new"
	TierEngaged Tier = "engaged"
	TierAtRisk  Tier = "at_risk"
	TierDormant Tier = "dormant"
)

// AllTiers lists every valid tier, for validation and LLM prompts.
func AllTiers() []Tier {
	return []Tier{TierNew, TierEngaged, TierAtRisk, TierDormant}
}

func ValidTier(t Tier) bool {
	for _, candidate := range AllTiers() {
		if t == candidate {
			return true
		}
	}
	return false
}

// Customer is one end user of a page, keyed by PSID within the page.
type Customer struct {
	ID            string     `json:"id"`
	PageID        string     `json:"page_id"`
	PSID          string     `json:"psid"`
	Name          string     `json:"name,omitempty"`
	CurrentTier   Tier       `json:"current_tier"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Page is a managed Facebook page with its Graph access token.
type Page struct {
	ID          string    `json:"id"` // Facebook page ID
	Name        string    `json:"name"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPageNotFound     = errors.New("page not found")
)

type ICustomerRepository interface {
	Upsert(ctx context.Context, customer *Customer) error
	GetByPSID(ctx context.Context, pageID, psid string) (*Customer, error)
	ListByPage(ctx context.Context, pageID string) ([]Customer, error)
	UpdateTier(ctx context.Context, pageID, psid string, tier Tier) error
}

type IPageRepository interface {
	Save(ctx context.Context, page *Page) error
	GetByID(ctx context.Context, id string) (*Page, error)
	List(ctx context.Context) ([]Page, error)
	Delete(ctx context.Context, id string) error
}
