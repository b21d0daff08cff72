package application

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

const excerptLimit = 120

// ExecutorConfig bounds the executor's pacing and retry behavior.
type ExecutorConfig struct {
	InterMessageDelay time.Duration // between messages to the same recipient
	InterTargetDelay  time.Duration // between recipients
	MaxAttempts       int
	RetryBaseDelay    time.Duration
}

func (c *ExecutorConfig) applyDefaults() {
	if c.InterMessageDelay < 500*time.Millisecond {
		c.InterMessageDelay = time.Second
	}
	if c.InterTargetDelay < time.Second {
		c.InterTargetDelay = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
}

// DeliveryExecutor sends a schedule's ordered message sequence to each
// recipient. The dedup ledger is marked atomically before the first
// send, so a recipient can win at most one full sequence per period;
// partial failures are logged, never re-driven on later ticks.
type DeliveryExecutor struct {
	graph  domain.IGraphClient
	tokens domain.ITokenProvider
	logs   domain.IDeliveryLogRepository
	ledger domain.IDedupLedger
	cfg    ExecutorConfig
	nowFn  func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewDeliveryExecutor(
	graph domain.IGraphClient,
	tokens domain.ITokenProvider,
	logs domain.IDeliveryLogRepository,
	ledger domain.IDedupLedger,
	cfg ExecutorConfig,
) *DeliveryExecutor {
	cfg.applyDefaults()
	return &DeliveryExecutor{
		graph:  graph,
		tokens: tokens,
		logs:   logs,
		ledger: ledger,
		cfg:    cfg,
		nowFn:  func() time.Time { return time.Now().UTC() },
		sleep:  sleepCtx,
	}
}

// SetNowFunc overrides the clock, for tests.
func (e *DeliveryExecutor) SetNowFunc(fn func() time.Time) {
	e.nowFn = fn
}

// SetSleepFunc overrides the pacing sleeps, for tests.
func (e *DeliveryExecutor) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

// Dispatch delivers the schedule's sequence to every recipient that is
// not yet ledgered for the current period. Per-recipient failures are
// contained; only a wholesale collaborator outage aborts the batch.
func (e *DeliveryExecutor) Dispatch(ctx context.Context, schedule *domain.Schedule, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	token, err := e.tokens.AccessToken(ctx, schedule.PageID)
	if err != nil {
		return &domain.CollaboratorUnavailableError{PageID: schedule.PageID, Err: err}
	}

	messages := schedule.OrderedMessages()
	if len(messages) == 0 {
		logrus.Warnf("[EXECUTOR] Schedule %s has no messages, nothing to send", schedule.ID)
		return nil
	}

	marker := schedule.PeriodMarker()
	dispatched := 0
	for i, recipient := range recipients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 && dispatched > 0 {
			if err := e.sleep(ctx, e.cfg.InterTargetDelay); err != nil {
				return err
			}
		}

		won, err := e.ledger.MarkSent(ctx, schedule.ID, recipient, marker)
		if err != nil {
			logrus.WithError(err).Errorf("[EXECUTOR] Ledger mark failed for %s/%s, skipping recipient", schedule.ID, recipient)
			continue
		}
		if !won {
			// Another flow already owns this period for the recipient.
			continue
		}

		dispatched++
		if err := e.sendSequence(ctx, schedule, recipient, messages, token); err != nil {
			if domain.IsCollaboratorUnavailable(err) {
				logrus.WithError(err).Errorf("[EXECUTOR] Collaborator down mid-batch for schedule %s, aborting remaining recipients", schedule.ID)
				return err
			}
			logrus.WithError(err).Warnf("[EXECUTOR] Sequence aborted for recipient %s on schedule %s", recipient, schedule.ID)
		}
	}

	logrus.Infof("[EXECUTOR] Schedule %s: dispatched sequences to %d/%d recipients", schedule.ID, dispatched, len(recipients))
	return nil
}

// sendSequence walks the ordered messages for one recipient, aborting
// the remainder on the first terminal failure.
func (e *DeliveryExecutor) sendSequence(ctx context.Context, schedule *domain.Schedule, recipient string, messages []domain.MessageSpec, token string) error {
	for i, msg := range messages {
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.InterMessageDelay); err != nil {
				return err
			}
		}

		err := e.sendWithRetry(ctx, recipient, msg, token)
		e.appendLog(ctx, schedule, recipient, msg, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// sendWithRetry performs one logical send attempt: transient failures
// back off exponentially up to the bound, permanent ones bail out
// immediately. The caller logs exactly one outcome.
func (e *DeliveryExecutor) sendWithRetry(ctx context.Context, recipient string, msg domain.MessageSpec, token string) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := e.cfg.RetryBaseDelay * (1 << (attempt - 1))
			if err := e.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		lastErr = e.sendOne(ctx, recipient, msg, token)
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
		logrus.WithError(lastErr).Debugf("[EXECUTOR] Transient failure for %s, attempt %d/%d", recipient, attempt+1, e.cfg.MaxAttempts)
	}
	return lastErr
}

func (e *DeliveryExecutor) sendOne(ctx context.Context, recipient string, msg domain.MessageSpec, token string) error {
	switch msg.Kind {
	case domain.MessageText:
		return e.graph.SendText(ctx, recipient, msg.Payload, token)
	case domain.MessageImage, domain.MessageVideo:
		return e.graph.SendMedia(ctx, recipient, msg.Kind, msg.Payload, token)
	default:
		return &domain.PermanentDeliveryError{Message: fmt.Sprintf("unknown message kind %q", msg.Kind)}
	}
}

func (e *DeliveryExecutor) appendLog(ctx context.Context, schedule *domain.Schedule, recipient string, msg domain.MessageSpec, sendErr error) {
	entry := &domain.DeliveryLogEntry{
		ScheduleID:  schedule.ID,
		PageID:      schedule.PageID,
		RecipientID: recipient,
		MessageKind: msg.Kind,
		Excerpt:     excerpt(msg.Payload),
		Status:      domain.DeliverySent,
		SentAt:      e.nowFn(),
	}
	if sendErr != nil {
		entry.Status = domain.DeliveryFailed
		entry.Error = sendErr.Error()
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		logrus.WithError(err).Errorf("[EXECUTOR] Failed to append delivery log for %s", recipient)
	}
}

// excerpt truncates on a rune boundary so the stored text stays valid
// UTF-8.
func excerpt(payload string) string {
	if len(payload) <= excerptLimit {
		return payload
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return payload[:cut]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
