package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	domainGroup "github.com/AzielCF/az-fbm/domains/group"
	"github.com/AzielCF/az-fbm/validations"
)

type serviceGroup struct {
	groups campaignDomain.IGroupRepository
}

func NewGroupService(groups campaignDomain.IGroupRepository) domainGroup.IGroupUsecase {
	return &serviceGroup{groups: groups}
}

func (service *serviceGroup) Create(ctx context.Context, request domainGroup.CreateRequest) (campaignDomain.RecipientGroup, error) {
	if err := validations.ValidateCreateGroup(ctx, request); err != nil {
		return campaignDomain.RecipientGroup{}, err
	}

	group := campaignDomain.RecipientGroup{
		ID:        uuid.NewString(),
		PageID:    request.PageID,
		Name:      request.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := service.groups.CreateGroup(ctx, &group); err != nil {
		return campaignDomain.RecipientGroup{}, err
	}

	logrus.Infof("[GROUP] Created group %s (%s) for page %s", group.ID, group.Name, group.PageID)
	return group, nil
}

func (service *serviceGroup) Delete(ctx context.Context, groupID string) error {
	if err := service.groups.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	logrus.Infof("[GROUP] Deleted group %s", groupID)
	return nil
}

func (service *serviceGroup) Get(ctx context.Context, groupID string) (campaignDomain.RecipientGroup, error) {
	group, err := service.groups.GetGroup(ctx, groupID)
	if err != nil {
		return campaignDomain.RecipientGroup{}, err
	}
	return *group, nil
}

func (service *serviceGroup) List(ctx context.Context, pageID string) ([]campaignDomain.RecipientGroup, error) {
	return service.groups.ListGroups(ctx, pageID)
}

func (service *serviceGroup) AddMember(ctx context.Context, groupID string, request domainGroup.MemberRequest) error {
	if err := validations.ValidateAddMember(ctx, request); err != nil {
		return err
	}
	if _, err := service.groups.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return service.groups.AddMember(ctx, groupID, request.RecipientID)
}

func (service *serviceGroup) RemoveMember(ctx context.Context, groupID, recipientID string) error {
	return service.groups.RemoveMember(ctx, groupID, recipientID)
}

func (service *serviceGroup) Members(ctx context.Context, groupID string) ([]string, error) {
	return service.groups.Resolve(ctx, groupID)
}
