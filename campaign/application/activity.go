package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/infrastructure/valkey"
	"github.com/AzielCF/az-fbm/pkg/timeutils"
)

const defaultActivityCacheTTL = 5 * time.Minute

// ActivityTracker answers "when did this recipient last message the
// page". Resolution order: valkey cache (when enabled), local activity
// record within the TTL, then a live Graph conversation fetch filtered
// to recipient-authored messages. Live observations are persisted.
type ActivityTracker struct {
	activities   domain.IActivityRepository
	graph        domain.IGraphClient
	tokens       domain.ITokenProvider
	cache        *valkey.Client
	cacheTTL     time.Duration
	messageLimit int
	nowFn        func() time.Time
}

func NewActivityTracker(
	activities domain.IActivityRepository,
	graph domain.IGraphClient,
	tokens domain.ITokenProvider,
	cache *valkey.Client,
	cacheTTL time.Duration,
	messageLimit int,
) *ActivityTracker {
	if cacheTTL <= 0 {
		cacheTTL = defaultActivityCacheTTL
	}
	if messageLimit <= 0 {
		messageLimit = 25
	}
	return &ActivityTracker{
		activities:   activities,
		graph:        graph,
		tokens:       tokens,
		cache:        cache,
		cacheTTL:     cacheTTL,
		messageLimit: messageLimit,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (t *ActivityTracker) SetNowFunc(fn func() time.Time) {
	t.nowFn = fn
}

// LastActivity returns the most recent inbound-message instant, or nil
// when the recipient never wrote to the page. A nil instant means the
// recipient has no inactivity baseline and is never considered due.
func (t *ActivityTracker) LastActivity(ctx context.Context, pageID, recipientID string) (*time.Time, error) {
	if cached := t.cacheGet(ctx, pageID, recipientID); cached != nil {
		return cached, nil
	}

	record, err := t.activities.Get(ctx, pageID, recipientID)
	if err != nil {
		return nil, err
	}
	if record != nil && t.nowFn().Sub(record.ObservedAt) < t.cacheTTL {
		instant := record.LastActivityAt.UTC()
		return &instant, nil
	}

	fetched, err := t.fetchFromGraph(ctx, pageID, recipientID)
	if err != nil {
		// Stale local data beats nothing when the Graph API is down.
		if record != nil {
			logrus.WithError(err).Warnf("[ACTIVITY] Graph fetch failed for %s/%s, using stale record", pageID, recipientID)
			instant := record.LastActivityAt.UTC()
			return &instant, nil
		}
		return nil, err
	}
	if fetched == nil {
		if record != nil {
			instant := record.LastActivityAt.UTC()
			return &instant, nil
		}
		return nil, nil
	}

	if err := t.Observe(ctx, fetched); err != nil {
		logrus.WithError(err).Warnf("[ACTIVITY] failed to persist observation for %s/%s", pageID, recipientID)
	}
	instant := fetched.LastActivityAt.UTC()
	return &instant, nil
}

// Observe upserts an activity record (webhook events and live fetches
// both land here) and refreshes the cache.
func (t *ActivityTracker) Observe(ctx context.Context, record *domain.ActivityRecord) error {
	record.LastActivityAt = record.LastActivityAt.UTC()
	if record.ObservedAt.IsZero() {
		record.ObservedAt = t.nowFn()
	}
	if err := t.activities.Upsert(ctx, record); err != nil {
		return err
	}
	t.cacheSet(ctx, record)
	return nil
}

// fetchFromGraph scans the page's conversations for the recipient and
// takes the newest message they authored. Returns nil when the
// recipient has no conversation or never wrote.
func (t *ActivityTracker) fetchFromGraph(ctx context.Context, pageID, recipientID string) (*domain.ActivityRecord, error) {
	token, err := t.tokens.AccessToken(ctx, pageID)
	if err != nil {
		return nil, &domain.CollaboratorUnavailableError{PageID: pageID, Err: err}
	}

	conversations, err := t.graph.FetchConversations(ctx, pageID, token)
	if err != nil {
		return nil, err
	}

	var conversationID string
	for _, conv := range conversations {
		for _, participant := range conv.Participants {
			if participant == recipientID {
				conversationID = conv.ID
				break
			}
		}
		if conversationID != "" {
			break
		}
	}
	if conversationID == "" {
		return nil, nil
	}

	messages, err := t.graph.FetchMessages(ctx, conversationID, token, t.messageLimit)
	if err != nil {
		return nil, err
	}

	var latest time.Time
	for _, msg := range messages {
		// Only recipient-authored messages count as activity. The
		// page's own outbound messages must never reset the clock.
		if msg.FromID != recipientID {
			continue
		}
		if msg.CreatedTime.After(latest) {
			latest = msg.CreatedTime
		}
	}
	if latest.IsZero() {
		return nil, nil
	}

	return &domain.ActivityRecord{
		PageID:          pageID,
		RecipientID:     recipientID,
		LastActivityAt:  latest,
		ConversationRef: conversationID,
		ObservedAt:      t.nowFn(),
	}, nil
}

func (t *ActivityTracker) cacheGet(ctx context.Context, pageID, recipientID string) *time.Time {
	if t.cache == nil {
		return nil
	}
	raw, ok, err := t.cache.GetString(ctx, t.cache.Key("activity", pageID, recipientID))
	if err != nil || !ok {
		return nil
	}
	instant, err := timeutils.ParseGraphTime(raw)
	if err != nil {
		return nil
	}
	return &instant
}

func (t *ActivityTracker) cacheSet(ctx context.Context, record *domain.ActivityRecord) {
	if t.cache == nil {
		return
	}
	key := t.cache.Key("activity", record.PageID, record.RecipientID)
	if err := t.cache.SetString(ctx, key, record.LastActivityAt.UTC().Format(time.RFC3339), t.cacheTTL); err != nil {
		logrus.WithError(err).Debug("[ACTIVITY] cache write failed")
	}
}
