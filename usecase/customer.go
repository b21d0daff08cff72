package usecase

import (
	"context"

	"github.com/AzielCF/az-fbm/classification"
	customersApp "github.com/AzielCF/az-fbm/customers/application"
	customersDomain "github.com/AzielCF/az-fbm/customers/domain"
	domainCustomer "github.com/AzielCF/az-fbm/domains/customer"
)

type serviceCustomer struct {
	customers  customersDomain.ICustomerRepository
	sync       *customersApp.CustomerSyncService
	classifier *classification.Engine
}

func NewCustomerService(
	customers customersDomain.ICustomerRepository,
	sync *customersApp.CustomerSyncService,
	classifier *classification.Engine,
) domainCustomer.ICustomerUsecase {
	return &serviceCustomer{
		customers:  customers,
		sync:       sync,
		classifier: classifier,
	}
}

func (service *serviceCustomer) List(ctx context.Context, pageID string) ([]customersDomain.Customer, error) {
	return service.customers.ListByPage(ctx, pageID)
}

func (service *serviceCustomer) Sync(ctx context.Context, pageID string) (customersApp.SyncResult, error) {
	return service.sync.SyncFromGraph(ctx, pageID)
}

// Classify re-tiers every customer of a page. Message text is not
// retained server-side, so the batch pass runs on contact recency; the
// keyword and LLM paths fire per message through the webhook flow.
func (service *serviceCustomer) Classify(ctx context.Context, pageID string) (domainCustomer.ClassifyResponse, error) {
	customers, err := service.customers.ListByPage(ctx, pageID)
	if err != nil {
		return domainCustomer.ClassifyResponse{}, err
	}

	updated, err := service.classifier.ClassifyPage(ctx, pageID, nil)
	if err != nil {
		return domainCustomer.ClassifyResponse{}, err
	}

	return domainCustomer.ClassifyResponse{
		PageID:  pageID,
		Total:   len(customers),
		Updated: updated,
	}, nil
}
