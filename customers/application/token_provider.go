package application

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-fbm/customers/domain"
)

// PageTokenProvider resolves Graph access tokens from the page
// registry. It replaces the legacy in-process token map so tokens are
// durable and injectable.
type PageTokenProvider struct {
	pages domain.IPageRepository
}

func NewPageTokenProvider(pages domain.IPageRepository) *PageTokenProvider {
	return &PageTokenProvider{pages: pages}
}

func (p *PageTokenProvider) AccessToken(ctx context.Context, pageID string) (string, error) {
	page, err := p.pages.GetByID(ctx, pageID)
	if err != nil {
		return "", err
	}
	if page.AccessToken == "" {
		return "", fmt.Errorf("page %s has no access token configured", pageID)
	}
	return page.AccessToken, nil
}
