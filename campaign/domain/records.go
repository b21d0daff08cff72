package domain

import "time"

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryPending DeliveryStatus = "pending"
)

// DeliveryLogEntry is an immutable record of one terminal send outcome.
// Retries inside one logical attempt do not create extra entries.
type DeliveryLogEntry struct {
	ID          string         `json:"id"`
	ScheduleID  string         `json:"schedule_id,omitempty"`
	PageID      string         `json:"page_id"`
	RecipientID string         `json:"recipient_id"`
	MessageKind MessageKind    `json:"message_kind"`
	Excerpt     string         `json:"content_excerpt"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

// DeliveryStats aggregates log entries per status for one page.
type DeliveryStats struct {
	PageID string `json:"page_id"`
	Sent   int64  `json:"sent"`
	Failed int64  `json:"failed"`
	Total  int64  `json:"total"`
}

// LogFilter narrows delivery log queries. Zero values mean "any".
type LogFilter struct {
	ScheduleID  string
	PageID      string
	RecipientID string
	Status      DeliveryStatus
	Limit       int
}

// ActivityRecord is the last known inbound-message instant for a
// recipient on a page, upserted on every observation.
type ActivityRecord struct {
	PageID          string    `json:"page_id"`
	RecipientID     string    `json:"recipient_id"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	ConversationRef string    `json:"conversation_ref,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
}

// RecipientGroup is an explicitly curated target list for schedules.
type RecipientGroup struct {
	ID        string    `json:"id"`
	PageID    string    `json:"page_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupMember struct {
	GroupID     string    `json:"group_id"`
	RecipientID string    `json:"recipient_id"`
	AddedAt     time.Time `json:"added_at"`
}

// Conversation and GraphMessage mirror the Graph API shapes the engine
// consumes. Timestamps are normalized to UTC at the client boundary.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	UpdatedTime  time.Time `json:"updated_time"`
}

type GraphMessage struct {
	ID          string    `json:"id"`
	FromID      string    `json:"from_id"`
	CreatedTime time.Time `json:"created_time"`
}
