package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/customers/domain"
)

// SyncResult summarizes one conversation import pass.
type SyncResult struct {
	PageID        string `json:"page_id"`
	Conversations int    `json:"conversations"`
	Customers     int    `json:"customers"`
	Skipped       int    `json:"skipped"`
}

// CustomerSyncService imports a page's conversation roster into the
// customer registry and seeds activity records, so inactivity schedules
// have baselines before the first webhook event arrives.
type CustomerSyncService struct {
	customers    domain.ICustomerRepository
	graph        campaignDomain.IGraphClient
	tokens       campaignDomain.ITokenProvider
	activity     campaignDomain.IActivityTracker
	messageLimit int
}

func NewCustomerSyncService(
	customers domain.ICustomerRepository,
	graph campaignDomain.IGraphClient,
	tokens campaignDomain.ITokenProvider,
	activity campaignDomain.IActivityTracker,
	messageLimit int,
) *CustomerSyncService {
	if messageLimit <= 0 {
		messageLimit = 25
	}
	return &CustomerSyncService{
		customers:    customers,
		graph:        graph,
		tokens:       tokens,
		activity:     activity,
		messageLimit: messageLimit,
	}
}

// SyncFromGraph walks the page's conversations, upserting one customer
// per non-page participant and observing their newest inbound message.
func (s *CustomerSyncService) SyncFromGraph(ctx context.Context, pageID string) (SyncResult, error) {
	result := SyncResult{PageID: pageID}

	token, err := s.tokens.AccessToken(ctx, pageID)
	if err != nil {
		return result, &campaignDomain.CollaboratorUnavailableError{PageID: pageID, Err: err}
	}

	conversations, err := s.graph.FetchConversations(ctx, pageID, token)
	if err != nil {
		return result, err
	}
	result.Conversations = len(conversations)

	for _, conv := range conversations {
		psid := participantPSID(conv, pageID)
		if psid == "" {
			result.Skipped++
			continue
		}

		lastInbound, err := s.newestInbound(ctx, conv.ID, psid, token)
		if err != nil {
			logrus.WithError(err).Warnf("[SYNC] Failed to read messages for conversation %s, skipping", conv.ID)
			result.Skipped++
			continue
		}

		customer := &domain.Customer{PageID: pageID, PSID: psid}
		if lastInbound != nil {
			customer.LastContactAt = lastInbound
		}
		if err := s.customers.Upsert(ctx, customer); err != nil {
			logrus.WithError(err).Warnf("[SYNC] Failed to upsert customer %s", psid)
			result.Skipped++
			continue
		}
		result.Customers++

		if lastInbound != nil {
			record := &campaignDomain.ActivityRecord{
				PageID:          pageID,
				RecipientID:     psid,
				LastActivityAt:  *lastInbound,
				ConversationRef: conv.ID,
			}
			if err := s.activity.Observe(ctx, record); err != nil {
				logrus.WithError(err).Warnf("[SYNC] Failed to observe activity for %s", psid)
			}
		}
	}

	logrus.Infof("[SYNC] Page %s: %d conversations, %d customers updated, %d skipped",
		pageID, result.Conversations, result.Customers, result.Skipped)
	return result, nil
}

// participantPSID picks the non-page participant of a conversation.
func participantPSID(conv campaignDomain.Conversation, pageID string) string {
	for _, participant := range conv.Participants {
		if participant != pageID {
			return participant
		}
	}
	return ""
}

func (s *CustomerSyncService) newestInbound(ctx context.Context, conversationID, psid, token string) (*time.Time, error) {
	messages, err := s.graph.FetchMessages(ctx, conversationID, token, s.messageLimit)
	if err != nil {
		return nil, err
	}
	var latest time.Time
	for _, msg := range messages {
		if msg.FromID != psid {
			continue
		}
		if msg.CreatedTime.After(latest) {
			latest = msg.CreatedTime
		}
	}
	if latest.IsZero() {
		return nil, nil
	}
	latest = latest.UTC()
	return &latest, nil
}
