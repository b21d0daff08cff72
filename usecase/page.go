package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	domainPage "github.com/AzielCF/az-fbm/domains/page"
	customersDomain "github.com/AzielCF/az-fbm/customers/domain"
	"github.com/AzielCF/az-fbm/validations"
)

type servicePage struct {
	pages customersDomain.IPageRepository
}

func NewPageService(pages customersDomain.IPageRepository) domainPage.IPageUsecase {
	return &servicePage{pages: pages}
}

func (service *servicePage) Register(ctx context.Context, request domainPage.RegisterRequest) (customersDomain.Page, error) {
	if err := validations.ValidateRegisterPage(ctx, request); err != nil {
		return customersDomain.Page{}, err
	}

	page := customersDomain.Page{
		ID:          request.PageID,
		Name:        request.Name,
		AccessToken: request.AccessToken,
		CreatedAt:   time.Now().UTC(),
	}
	if err := service.pages.Save(ctx, &page); err != nil {
		return customersDomain.Page{}, err
	}

	logrus.Infof("[PAGE] Registered page %s (%s)", page.ID, page.Name)
	return page, nil
}

func (service *servicePage) List(ctx context.Context) ([]customersDomain.Page, error) {
	return service.pages.List(ctx)
}

func (service *servicePage) Delete(ctx context.Context, pageID string) error {
	if err := service.pages.Delete(ctx, pageID); err != nil {
		return err
	}
	logrus.Infof("[PAGE] Removed page %s", pageID)
	return nil
}
