package schedule

import (
	"context"
	"time"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/pkg/msgworker"
)

type IScheduleUsecase interface {
	Create(ctx context.Context, request CreateRequest) (campaignDomain.Schedule, error)
	Update(ctx context.Context, scheduleID string, request UpdateRequest) (campaignDomain.Schedule, error)
	Get(ctx context.Context, scheduleID string) (campaignDomain.Schedule, error)
	List(ctx context.Context, pageID string) ([]campaignDomain.Schedule, error)
	Toggle(ctx context.Context, scheduleID string, active bool) (campaignDomain.Schedule, error)
	Delete(ctx context.Context, scheduleID string) error
	Status(ctx context.Context, scheduleID string) (StatusResponse, error)
	ForceRun(ctx context.Context, scheduleID string) error
	SystemStatus(ctx context.Context) (SystemStatusResponse, error)
}

type MessagePayload struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
	Order   int    `json:"order"`
}

type CreateRequest struct {
	PageID        string           `json:"page_id"`
	TargetGroupID string           `json:"target_group_id"`
	Name          string           `json:"name"`
	Kind          string           `json:"kind"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	Threshold     *ThresholdInput  `json:"threshold,omitempty"`
	Recurrence    *RecurrenceInput `json:"recurrence,omitempty"`
	Messages      []MessagePayload `json:"messages"`
}

type UpdateRequest struct {
	Name        string           `json:"name"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	Threshold   *ThresholdInput  `json:"threshold,omitempty"`
	Recurrence  *RecurrenceInput `json:"recurrence,omitempty"`
	Messages    []MessagePayload `json:"messages"`
}

type ThresholdInput struct {
	Magnitude int    `json:"magnitude"`
	Unit      string `json:"unit"`
}

type RecurrenceInput struct {
	Repeat   string     `json:"repeat"`
	Weekdays []int      `json:"weekdays,omitempty"` // 0 = Monday .. 6 = Sunday
	EndAt    *time.Time `json:"end_at,omitempty"`
}

type StatusResponse struct {
	ScheduleID   string     `json:"schedule_id"`
	Name         string     `json:"name"`
	Kind         string     `json:"kind"`
	IsActive     bool       `json:"is_active"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastRunHuman string     `json:"last_run_human,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	NextRunHuman string     `json:"next_run_human,omitempty"`
	Sent         int64      `json:"sent"`
	Failed       int64      `json:"failed"`
}

type SystemStatusResponse struct {
	ActiveSchedules int                  `json:"active_schedules"`
	Pool            *msgworker.PoolStats `json:"pool,omitempty"`
}
