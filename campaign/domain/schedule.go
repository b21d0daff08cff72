package domain

import (
	"sort"
	"time"

	"github.com/AzielCF/az-fbm/pkg/timeutils"
)

type ScheduleKind string

const (
	KindImmediate           ScheduleKind = "immediate"
	KindFixedTime           ScheduleKind = "fixed_time"
	KindInactivityTriggered ScheduleKind = "inactivity_triggered"
)

type RepeatRule string

const (
	RepeatOnce    RepeatRule = "once"
	RepeatDaily   RepeatRule = "daily"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
)

type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVideo MessageKind = "video"
)

// MessageSpec is one message of a schedule's sequence. Order is the
// authoritative send position, not insertion order.
type MessageSpec struct {
	Kind    MessageKind `json:"kind"`
	Payload string      `json:"payload"` // Text body, or media URL for image/video
	Order   int         `json:"order"`
}

// InactivityThreshold expresses "quiet for N units" for inactivity
// triggered schedules.
type InactivityThreshold struct {
	Magnitude int            `json:"magnitude"`
	Unit      timeutils.Unit `json:"unit"`
}

// Duration converts the threshold into a concrete duration.
func (t InactivityThreshold) Duration() (time.Duration, error) {
	return timeutils.ToDuration(t.Magnitude, t.Unit)
}

// Recurrence describes how a fixed-time schedule repeats. Weekdays use
// 0=Monday through 6=Sunday and only apply to weekly repeats.
type Recurrence struct {
	Repeat   RepeatRule `json:"repeat"`
	Weekdays []int      `json:"weekdays,omitempty"`
	EndAt    *time.Time `json:"end_at,omitempty"`
}

type Schedule struct {
	ID            string              `json:"id"`
	PageID        string              `json:"page_id"`
	TargetGroupID string              `json:"target_group_id"`
	Name          string              `json:"name"`
	Kind          ScheduleKind        `json:"kind"`
	ScheduledAt   *time.Time          `json:"scheduled_at,omitempty"` // FixedTime only
	Threshold     InactivityThreshold `json:"threshold"`              // InactivityTriggered only
	Recurrence    Recurrence          `json:"recurrence"`
	Messages      []MessageSpec       `json:"messages"`
	IsActive      bool                `json:"is_active"`
	ActivatedAt   time.Time           `json:"activated_at"`
	LastRunAt     *time.Time          `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time          `json:"next_run_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderedMessages returns the message sequence sorted by Order ascending.
func (s *Schedule) OrderedMessages() []MessageSpec {
	out := make([]MessageSpec, len(s.Messages))
	copy(out, s.Messages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// PeriodMarker identifies the current activation period for dedup
// purposes. Recurring fixed-time schedules roll the marker with each
// cycle (keyed on the cycle's fire instant); everything else is scoped
// to the activation itself.
func (s *Schedule) PeriodMarker() string {
	if s.Kind == KindFixedTime && s.Recurrence.Repeat != RepeatOnce && s.NextRunAt != nil {
		return s.NextRunAt.UTC().Format(time.RFC3339)
	}
	return s.ActivatedAt.UTC().Format(time.RFC3339)
}

// Recurring reports whether the schedule fires more than once.
func (s *Schedule) Recurring() bool {
	return s.Kind == KindFixedTime && s.Recurrence.Repeat != RepeatOnce
}
