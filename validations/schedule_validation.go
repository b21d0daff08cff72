package validations

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	domainSchedule "github.com/AzielCF/az-fbm/domains/schedule"
	pkgError "github.com/AzielCF/az-fbm/pkg/error"
)

var scheduleKinds = []interface{}{
	string(campaignDomain.KindImmediate),
	string(campaignDomain.KindFixedTime),
	string(campaignDomain.KindInactivityTriggered),
}

var repeatRules = []interface{}{
	string(campaignDomain.RepeatOnce),
	string(campaignDomain.RepeatDaily),
	string(campaignDomain.RepeatWeekly),
	string(campaignDomain.RepeatMonthly),
}

var thresholdUnits = []interface{}{"minutes", "hours", "days", "weeks", "months"}

var messageKinds = []interface{}{
	string(campaignDomain.MessageText),
	string(campaignDomain.MessageImage),
	string(campaignDomain.MessageVideo),
}

func ValidateCreateSchedule(ctx context.Context, request domainSchedule.CreateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PageID, validation.Required),
		validation.Field(&request.TargetGroupID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.Kind, validation.Required, validation.In(scheduleKinds...)),
		validation.Field(&request.Messages, validation.Required, validation.Length(1, 20)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if err := validateMessages(ctx, request.Messages); err != nil {
		return err
	}
	return validateKindInputs(ctx, request.Kind, request.ScheduledAt, request.Threshold, request.Recurrence)
}

func ValidateUpdateSchedule(ctx context.Context, kind string, request domainSchedule.UpdateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.Messages, validation.Required, validation.Length(1, 20)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if err := validateMessages(ctx, request.Messages); err != nil {
		return err
	}
	return validateKindInputs(ctx, kind, request.ScheduledAt, request.Threshold, request.Recurrence)
}

func validateMessages(ctx context.Context, messages []domainSchedule.MessagePayload) error {
	for _, msg := range messages {
		err := validation.ValidateStructWithContext(ctx, &msg,
			validation.Field(&msg.Kind, validation.Required, validation.In(messageKinds...)),
			validation.Field(&msg.Payload, validation.Required),
			validation.Field(&msg.Order, validation.Min(0)),
		)
		if err != nil {
			return pkgError.ValidationError(err.Error())
		}
	}
	return nil
}

func validateKindInputs(
	ctx context.Context,
	kind string,
	scheduledAt *time.Time,
	threshold *domainSchedule.ThresholdInput,
	recurrence *domainSchedule.RecurrenceInput,
) error {
	switch campaignDomain.ScheduleKind(kind) {
	case campaignDomain.KindFixedTime:
		if scheduledAt == nil || scheduledAt.IsZero() {
			return pkgError.ValidationError("scheduled_at is required for fixed_time schedules")
		}
	case campaignDomain.KindInactivityTriggered:
		if threshold == nil {
			return pkgError.ValidationError("threshold is required for inactivity_triggered schedules")
		}
		err := validation.ValidateStructWithContext(ctx, threshold,
			validation.Field(&threshold.Magnitude, validation.Required, validation.Min(1)),
			validation.Field(&threshold.Unit, validation.Required, validation.In(thresholdUnits...)),
		)
		if err != nil {
			return pkgError.ValidationError(err.Error())
		}
	}

	if recurrence != nil {
		err := validation.ValidateStructWithContext(ctx, recurrence,
			validation.Field(&recurrence.Repeat, validation.Required, validation.In(repeatRules...)),
		)
		if err != nil {
			return pkgError.ValidationError(err.Error())
		}
		if campaignDomain.RepeatRule(recurrence.Repeat) == campaignDomain.RepeatWeekly {
			if len(recurrence.Weekdays) == 0 {
				return pkgError.ValidationError("weekdays is required for weekly recurrence")
			}
			for _, day := range recurrence.Weekdays {
				if day < 0 || day > 6 {
					return pkgError.ValidationError("weekdays entries must be between 0 (Monday) and 6 (Sunday)")
				}
			}
		}
	}
	return nil
}
