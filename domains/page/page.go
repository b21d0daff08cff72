package page

import (
	"context"

	customersDomain "github.com/AzielCF/az-fbm/customers/domain"
)

type IPageUsecase interface {
	Register(ctx context.Context, request RegisterRequest) (customersDomain.Page, error)
	List(ctx context.Context) ([]customersDomain.Page, error)
	Delete(ctx context.Context, pageID string) error
}

type RegisterRequest struct {
	PageID      string `json:"page_id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}
