package delivery

import (
	"context"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
)

type IDeliveryUsecase interface {
	Logs(ctx context.Context, request LogsRequest) ([]campaignDomain.DeliveryLogEntry, error)
	Stats(ctx context.Context, pageID string) (campaignDomain.DeliveryStats, error)
}

type LogsRequest struct {
	ScheduleID  string `json:"schedule_id" query:"schedule_id"`
	PageID      string `json:"page_id" query:"page_id"`
	RecipientID string `json:"recipient_id" query:"recipient_id"`
	Status      string `json:"status" query:"status"`
	Limit       int    `json:"limit" query:"limit"`
}
