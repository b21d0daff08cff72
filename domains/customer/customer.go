package customer

import (
	"context"

	customersApp "github.com/AzielCF/az-fbm/customers/application"
	customersDomain "github.com/AzielCF/az-fbm/customers/domain"
)

type ICustomerUsecase interface {
	List(ctx context.Context, pageID string) ([]customersDomain.Customer, error)
	Sync(ctx context.Context, pageID string) (customersApp.SyncResult, error)
	Classify(ctx context.Context, pageID string) (ClassifyResponse, error)
}

type ClassifyResponse struct {
	PageID  string `json:"page_id"`
	Total   int    `json:"total"`
	Updated int    `json:"updated"`
}
