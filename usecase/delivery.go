package usecase

import (
	"context"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	domainDelivery "github.com/AzielCF/az-fbm/domains/delivery"
)

type serviceDelivery struct {
	logs campaignDomain.IDeliveryLogRepository
}

func NewDeliveryService(logs campaignDomain.IDeliveryLogRepository) domainDelivery.IDeliveryUsecase {
	return &serviceDelivery{logs: logs}
}

func (service *serviceDelivery) Logs(ctx context.Context, request domainDelivery.LogsRequest) ([]campaignDomain.DeliveryLogEntry, error) {
	return service.logs.Find(ctx, campaignDomain.LogFilter{
		ScheduleID:  request.ScheduleID,
		PageID:      request.PageID,
		RecipientID: request.RecipientID,
		Status:      campaignDomain.DeliveryStatus(request.Status),
		Limit:       request.Limit,
	})
}

func (service *serviceDelivery) Stats(ctx context.Context, pageID string) (campaignDomain.DeliveryStats, error) {
	return service.logs.Stats(ctx, pageID)
}
