package group

import (
	"context"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
)

type IGroupUsecase interface {
	Create(ctx context.Context, request CreateRequest) (campaignDomain.RecipientGroup, error)
	Delete(ctx context.Context, groupID string) error
	Get(ctx context.Context, groupID string) (campaignDomain.RecipientGroup, error)
	List(ctx context.Context, pageID string) ([]campaignDomain.RecipientGroup, error)
	AddMember(ctx context.Context, groupID string, request MemberRequest) error
	RemoveMember(ctx context.Context, groupID, recipientID string) error
	Members(ctx context.Context, groupID string) ([]string, error)
}

type CreateRequest struct {
	PageID string `json:"page_id"`
	Name   string `json:"name"`
}

type MemberRequest struct {
	RecipientID string `json:"recipient_id"`
}
