package usecase

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	campaignApp "github.com/AzielCF/az-fbm/campaign/application"
	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	domainSchedule "github.com/AzielCF/az-fbm/domains/schedule"
	"github.com/AzielCF/az-fbm/pkg/timeutils"
	"github.com/AzielCF/az-fbm/validations"
)

type serviceSchedule struct {
	schedules campaignDomain.IScheduleRepository
	ledger    campaignDomain.IDedupLedger
	logs      campaignDomain.IDeliveryLogRepository
	groups    campaignDomain.IGroupRepository
	scheduler *campaignApp.Scheduler
	nowFn     func() time.Time
}

func NewScheduleService(
	schedules campaignDomain.IScheduleRepository,
	ledger campaignDomain.IDedupLedger,
	logs campaignDomain.IDeliveryLogRepository,
	groups campaignDomain.IGroupRepository,
	scheduler *campaignApp.Scheduler,
) domainSchedule.IScheduleUsecase {
	return &serviceSchedule{
		schedules: schedules,
		ledger:    ledger,
		logs:      logs,
		groups:    groups,
		scheduler: scheduler,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

func (service *serviceSchedule) Create(ctx context.Context, request domainSchedule.CreateRequest) (campaignDomain.Schedule, error) {
	if err := validations.ValidateCreateSchedule(ctx, request); err != nil {
		return campaignDomain.Schedule{}, err
	}

	if _, err := service.groups.GetGroup(ctx, request.TargetGroupID); err != nil {
		return campaignDomain.Schedule{}, err
	}

	now := service.nowFn()
	schedule := campaignDomain.Schedule{
		ID:            uuid.NewString(),
		PageID:        request.PageID,
		TargetGroupID: request.TargetGroupID,
		Name:          request.Name,
		Kind:          campaignDomain.ScheduleKind(request.Kind),
		Messages:      toMessageSpecs(request.Messages),
		IsActive:      true,
		ActivatedAt:   now,
	}
	applyKindInputs(&schedule, request.ScheduledAt, request.Threshold, request.Recurrence)

	if err := service.schedules.Create(ctx, &schedule); err != nil {
		return campaignDomain.Schedule{}, err
	}

	logrus.Infof("[SCHEDULE] Created %s schedule %s (%s) for page %s", schedule.Kind, schedule.ID, schedule.Name, schedule.PageID)
	return schedule, nil
}

// Update rewrites the definition and opens a fresh activation period:
// the dedup ledger is reset so the changed content may reach recipients
// who already received the previous version.
func (service *serviceSchedule) Update(ctx context.Context, scheduleID string, request domainSchedule.UpdateRequest) (campaignDomain.Schedule, error) {
	schedule, err := service.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return campaignDomain.Schedule{}, err
	}

	if err := validations.ValidateUpdateSchedule(ctx, string(schedule.Kind), request); err != nil {
		return campaignDomain.Schedule{}, err
	}

	now := service.nowFn()
	schedule.Name = request.Name
	schedule.Messages = toMessageSpecs(request.Messages)
	schedule.ActivatedAt = now
	schedule.LastRunAt = nil
	applyKindInputs(schedule, request.ScheduledAt, request.Threshold, request.Recurrence)
	rollFixedTime(schedule, now)

	if err := service.ledger.Reset(ctx, scheduleID); err != nil {
		return campaignDomain.Schedule{}, err
	}
	if err := service.schedules.Update(ctx, schedule); err != nil {
		return campaignDomain.Schedule{}, err
	}

	logrus.Infof("[SCHEDULE] Updated schedule %s, activation period restarted", scheduleID)
	return *schedule, nil
}

func (service *serviceSchedule) Get(ctx context.Context, scheduleID string) (campaignDomain.Schedule, error) {
	schedule, err := service.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return campaignDomain.Schedule{}, err
	}
	return *schedule, nil
}

func (service *serviceSchedule) List(ctx context.Context, pageID string) ([]campaignDomain.Schedule, error) {
	schedules, err := service.schedules.List(ctx, pageID)
	if err != nil {
		return nil, err
	}
	out := make([]campaignDomain.Schedule, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, *s)
	}
	return out, nil
}

// Toggle flips activation. Re-activating starts a new period: the
// ledger is cleared, ActivatedAt refreshes, and fixed-time schedules
// roll their next fire instant forward past now so missed cycles do
// not fire retroactively.
func (service *serviceSchedule) Toggle(ctx context.Context, scheduleID string, active bool) (campaignDomain.Schedule, error) {
	schedule, err := service.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return campaignDomain.Schedule{}, err
	}

	if !active {
		schedule.IsActive = false
		if err := service.schedules.Update(ctx, schedule); err != nil {
			return campaignDomain.Schedule{}, err
		}
		logrus.Infof("[SCHEDULE] Deactivated schedule %s", scheduleID)
		return *schedule, nil
	}

	now := service.nowFn()
	schedule.IsActive = true
	schedule.ActivatedAt = now
	schedule.LastRunAt = nil
	rollFixedTime(schedule, now)

	if err := service.ledger.Reset(ctx, scheduleID); err != nil {
		return campaignDomain.Schedule{}, err
	}
	if err := service.schedules.Update(ctx, schedule); err != nil {
		return campaignDomain.Schedule{}, err
	}

	logrus.Infof("[SCHEDULE] Activated schedule %s, new period begins", scheduleID)
	return *schedule, nil
}

func (service *serviceSchedule) Delete(ctx context.Context, scheduleID string) error {
	if _, err := service.schedules.GetByID(ctx, scheduleID); err != nil {
		return err
	}
	if err := service.ledger.Reset(ctx, scheduleID); err != nil {
		return err
	}
	if err := service.logs.DeleteBySchedule(ctx, scheduleID); err != nil {
		return err
	}
	if err := service.schedules.Delete(ctx, scheduleID); err != nil {
		return err
	}
	logrus.Infof("[SCHEDULE] Deleted schedule %s with its ledger and logs", scheduleID)
	return nil
}

func (service *serviceSchedule) Status(ctx context.Context, scheduleID string) (domainSchedule.StatusResponse, error) {
	schedule, err := service.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return domainSchedule.StatusResponse{}, err
	}

	response := domainSchedule.StatusResponse{
		ScheduleID: schedule.ID,
		Name:       schedule.Name,
		Kind:       string(schedule.Kind),
		IsActive:   schedule.IsActive,
		LastRunAt:  schedule.LastRunAt,
		NextRunAt:  schedule.NextRunAt,
	}
	if schedule.LastRunAt != nil {
		response.LastRunHuman = humanize.Time(*schedule.LastRunAt)
	}
	if schedule.NextRunAt != nil {
		response.NextRunHuman = humanize.Time(*schedule.NextRunAt)
	}

	response.Sent, err = service.countByStatus(ctx, scheduleID, campaignDomain.DeliverySent)
	if err != nil {
		return domainSchedule.StatusResponse{}, err
	}
	response.Failed, err = service.countByStatus(ctx, scheduleID, campaignDomain.DeliveryFailed)
	if err != nil {
		return domainSchedule.StatusResponse{}, err
	}
	return response, nil
}

func (service *serviceSchedule) ForceRun(ctx context.Context, scheduleID string) error {
	if _, err := service.schedules.GetByID(ctx, scheduleID); err != nil {
		return err
	}
	return service.scheduler.ForceRun(ctx, scheduleID)
}

func (service *serviceSchedule) SystemStatus(ctx context.Context) (domainSchedule.SystemStatusResponse, error) {
	active, err := service.schedules.ListActive(ctx)
	if err != nil {
		return domainSchedule.SystemStatusResponse{}, err
	}
	return domainSchedule.SystemStatusResponse{
		ActiveSchedules: len(active),
		Pool:            service.scheduler.PoolStats(),
	}, nil
}

func (service *serviceSchedule) countByStatus(ctx context.Context, scheduleID string, status campaignDomain.DeliveryStatus) (int64, error) {
	entries, err := service.logs.Find(ctx, campaignDomain.LogFilter{
		ScheduleID: scheduleID,
		Status:     status,
		Limit:      500,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

func toMessageSpecs(payloads []domainSchedule.MessagePayload) []campaignDomain.MessageSpec {
	specs := make([]campaignDomain.MessageSpec, 0, len(payloads))
	for _, p := range payloads {
		specs = append(specs, campaignDomain.MessageSpec{
			Kind:    campaignDomain.MessageKind(p.Kind),
			Payload: p.Payload,
			Order:   p.Order,
		})
	}
	return specs
}

// rollFixedTime seats a fixed-time schedule's next fire strictly past
// now, so cycles that elapsed while the schedule was inactive or being
// edited never fire retroactively. An exhausted recurrence deactivates.
func rollFixedTime(schedule *campaignDomain.Schedule, now time.Time) {
	if schedule.Kind != campaignDomain.KindFixedTime {
		return
	}
	next := schedule.NextRunAt
	if next == nil {
		next = schedule.ScheduledAt
	}
	if next == nil {
		schedule.IsActive = false
		return
	}
	if next.After(now) {
		schedule.NextRunAt = next
		return
	}
	rolled := *next
	ok := true
	for ok && !rolled.After(now) {
		rolled, ok = campaignDomain.NextRun(schedule.Recurrence, rolled)
	}
	if !ok {
		schedule.IsActive = false
		schedule.NextRunAt = nil
		return
	}
	schedule.NextRunAt = &rolled
}

func applyKindInputs(
	schedule *campaignDomain.Schedule,
	scheduledAt *time.Time,
	threshold *domainSchedule.ThresholdInput,
	recurrence *domainSchedule.RecurrenceInput,
) {
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		schedule.ScheduledAt = &at
		if schedule.Kind == campaignDomain.KindFixedTime {
			next := at
			schedule.NextRunAt = &next
		}
	}
	if threshold != nil {
		schedule.Threshold = campaignDomain.InactivityThreshold{
			Magnitude: threshold.Magnitude,
			Unit:      timeutils.Unit(threshold.Unit),
		}
	}
	if recurrence != nil {
		schedule.Recurrence = campaignDomain.Recurrence{
			Repeat:   campaignDomain.RepeatRule(recurrence.Repeat),
			Weekdays: recurrence.Weekdays,
			EndAt:    recurrence.EndAt,
		}
	} else if schedule.Recurrence.Repeat == "" {
		schedule.Recurrence.Repeat = campaignDomain.RepeatOnce
	}
}
