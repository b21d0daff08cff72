package domain

import (
	"context"
	"time"
)

// IScheduleRepository persists schedule definitions.
type IScheduleRepository interface {
	Create(ctx context.Context, schedule *Schedule) error
	Update(ctx context.Context, schedule *Schedule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context, pageID string) ([]*Schedule, error)
	ListActive(ctx context.Context) ([]*Schedule, error)
	// UpdateRunState is the scheduler loop's bookkeeping write. A nil
	// nextRun means the schedule will never fire again.
	UpdateRunState(ctx context.Context, id string, lastRun, nextRun *time.Time, isActive bool) error
}

// IDedupLedger is the at-most-once guard per (schedule, recipient,
// period). MarkSent must be an atomic insert-if-absent: it returns true
// only for the caller that created the entry.
type IDedupLedger interface {
	IsSent(ctx context.Context, scheduleID, recipientID, periodMarker string) (bool, error)
	MarkSent(ctx context.Context, scheduleID, recipientID, periodMarker string) (bool, error)
	Reset(ctx context.Context, scheduleID string) error
}

// IDeliveryLogRepository appends and queries immutable send outcomes.
type IDeliveryLogRepository interface {
	Append(ctx context.Context, entry *DeliveryLogEntry) error
	Find(ctx context.Context, filter LogFilter) ([]DeliveryLogEntry, error)
	Stats(ctx context.Context, pageID string) (DeliveryStats, error)
	DeleteBySchedule(ctx context.Context, scheduleID string) error
}

// IActivityRepository stores last-inbound-message observations.
type IActivityRepository interface {
	Get(ctx context.Context, pageID, recipientID string) (*ActivityRecord, error)
	Upsert(ctx context.Context, record *ActivityRecord) error
	ListByPage(ctx context.Context, pageID string) ([]ActivityRecord, error)
}

// IGroupRepository is the recipient directory: explicit membership
// records, never rederived from live conversations.
type IGroupRepository interface {
	CreateGroup(ctx context.Context, group *RecipientGroup) error
	DeleteGroup(ctx context.Context, id string) error
	GetGroup(ctx context.Context, id string) (*RecipientGroup, error)
	ListGroups(ctx context.Context, pageID string) ([]RecipientGroup, error)
	AddMember(ctx context.Context, groupID, recipientID string) error
	RemoveMember(ctx context.Context, groupID, recipientID string) error
	// Resolve returns the group's member PSIDs in insertion order.
	Resolve(ctx context.Context, groupID string) ([]string, error)
}

// ITokenProvider resolves a page's Graph access token.
type ITokenProvider interface {
	AccessToken(ctx context.Context, pageID string) (string, error)
}

// IGraphClient is the Facebook Graph collaborator.
type IGraphClient interface {
	FetchConversations(ctx context.Context, pageID, token string) ([]Conversation, error)
	FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]GraphMessage, error)
	SendText(ctx context.Context, recipientID, text, token string) error
	SendMedia(ctx context.Context, recipientID string, kind MessageKind, url, token string) error
}

// IActivityTracker answers "when did this recipient last write to us".
// A nil instant means no inbound message was ever observed.
type IActivityTracker interface {
	LastActivity(ctx context.Context, pageID, recipientID string) (*time.Time, error)
	Observe(ctx context.Context, record *ActivityRecord) error
}

// IDeliveryExecutor dispatches a schedule's full message sequence to a
// set of recipients.
type IDeliveryExecutor interface {
	Dispatch(ctx context.Context, schedule *Schedule, recipients []string) error
}
