package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/classification"
	customersDomain "github.com/AzielCF/az-fbm/customers/domain"
	domainWebhook "github.com/AzielCF/az-fbm/domains/webhook"
	pkgError "github.com/AzielCF/az-fbm/pkg/error"
)

type serviceWebhook struct {
	verifyToken string
	customers   customersDomain.ICustomerRepository
	activity    campaignDomain.IActivityTracker
	classifier  *classification.Engine
}

func NewWebhookService(
	verifyToken string,
	customers customersDomain.ICustomerRepository,
	activity campaignDomain.IActivityTracker,
	classifier *classification.Engine,
) domainWebhook.IWebhookUsecase {
	return &serviceWebhook{
		verifyToken: verifyToken,
		customers:   customers,
		activity:    activity,
		classifier:  classifier,
	}
}

func (service *serviceWebhook) Verify(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != service.verifyToken {
		return "", pkgError.ValidationError("webhook verification failed")
	}
	return challenge, nil
}

// HandleEvent folds inbound Messenger events into the activity store
// and customer registry. Page-authored echoes are ignored: only what
// the recipient writes counts as activity.
func (service *serviceWebhook) HandleEvent(ctx context.Context, event domainWebhook.Event) error {
	if event.Object != "page" {
		return fmt.Errorf("unsupported webhook object %q", event.Object)
	}

	for _, entry := range event.Entry {
		pageID := entry.ID
		for _, messaging := range entry.Messaging {
			if messaging.Sender.ID == "" || messaging.Sender.ID == pageID {
				continue
			}
			if err := service.handleInbound(ctx, pageID, messaging); err != nil {
				logrus.WithError(err).Warnf("[WEBHOOK] Failed to process event from %s on page %s", messaging.Sender.ID, pageID)
			}
		}
	}
	return nil
}

func (service *serviceWebhook) handleInbound(ctx context.Context, pageID string, messaging domainWebhook.Messaging) error {
	psid := messaging.Sender.ID
	at := time.UnixMilli(messaging.Timestamp).UTC()
	if messaging.Timestamp == 0 {
		at = time.Now().UTC()
	}

	customer := &customersDomain.Customer{
		PageID:        pageID,
		PSID:          psid,
		LastContactAt: &at,
	}
	if err := service.customers.Upsert(ctx, customer); err != nil {
		return err
	}

	record := &campaignDomain.ActivityRecord{
		PageID:         pageID,
		RecipientID:    psid,
		LastActivityAt: at,
	}
	if err := service.activity.Observe(ctx, record); err != nil {
		return err
	}

	if service.classifier != nil && messaging.Message != nil && messaging.Message.Text != "" {
		service.classifyInbound(ctx, pageID, psid, messaging.Message.Text)
	}
	return nil
}

// classifyInbound re-tiers a single customer from their latest message.
// Classification failures never block activity ingestion.
func (service *serviceWebhook) classifyInbound(ctx context.Context, pageID, psid, text string) {
	customer, err := service.customers.GetByPSID(ctx, pageID, psid)
	if err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Cannot classify unknown customer %s", psid)
		return
	}

	tier, err := service.classifier.Classify(ctx, customer, text)
	if err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Classification failed for %s", psid)
		return
	}
	if tier == customer.CurrentTier {
		return
	}
	if err := service.customers.UpdateTier(ctx, pageID, psid, tier); err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Failed to persist tier for %s", psid)
	}
}
