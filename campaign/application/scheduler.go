package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-fbm/campaign/domain"
	"github.com/AzielCF/az-fbm/infrastructure/valkey"
	"github.com/AzielCF/az-fbm/pkg/msgworker"
)

// SchedulerConfig bounds the polling loop.
type SchedulerConfig struct {
	PollInterval  time.Duration
	FireTolerance time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.FireTolerance <= 0 {
		c.FireTolerance = 30 * time.Second
	}
}

// Scheduler is the orchestrating loop: each tick it evaluates every
// active schedule, decides due-ness per kind, and hands due recipient
// sets to the executor. It is the only writer of last/next run state.
type Scheduler struct {
	schedules domain.IScheduleRepository
	groups    domain.IGroupRepository
	ledger    domain.IDedupLedger
	activity  domain.IActivityTracker
	executor  domain.IDeliveryExecutor
	pool      *msgworker.EvalWorkerPool
	cache     *valkey.Client
	cfg       SchedulerConfig
	nowFn     func() time.Time
}

// NewScheduler wires the loop. pool may be nil, in which case schedules
// are evaluated inline on the ticking goroutine; cache may be nil, in
// which case the multi-node tick lock is skipped.
func NewScheduler(
	schedules domain.IScheduleRepository,
	groups domain.IGroupRepository,
	ledger domain.IDedupLedger,
	activity domain.IActivityTracker,
	executor domain.IDeliveryExecutor,
	pool *msgworker.EvalWorkerPool,
	cache *valkey.Client,
	cfg SchedulerConfig,
) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		schedules: schedules,
		groups:    groups,
		ledger:    ledger,
		activity:  activity,
		executor:  executor,
		pool:      pool,
		cache:     cache,
		cfg:       cfg,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Scheduler) SetNowFunc(fn func() time.Time) {
	s.nowFn = fn
}

// StartLoop runs the polling loop until ctx is cancelled.
func (s *Scheduler) StartLoop(ctx context.Context) {
	logrus.Infof("[SCHEDULER] Loop started, poll interval %s", s.cfg.PollInterval)

	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				logrus.Info("[SCHEDULER] Loop stopped")
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick evaluates every active schedule once. Per-schedule failures are
// isolated: one broken schedule never halts the others.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.acquireTickLock(ctx) {
		logrus.Debug("[SCHEDULER] Tick lock held elsewhere, skipping")
		return
	}

	active, err := s.schedules.ListActive(ctx)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Failed to load active schedules")
		return
	}

	for _, schedule := range active {
		schedule := schedule
		if s.pool != nil {
			s.pool.Dispatch(msgworker.EvalJob{
				PageID:     schedule.PageID,
				ScheduleID: schedule.ID,
				Handler: func(jobCtx context.Context) error {
					return s.evaluate(jobCtx, schedule.ID)
				},
			})
			continue
		}
		if err := s.evaluate(ctx, schedule.ID); err != nil {
			logrus.WithError(err).Warnf("[SCHEDULER] Evaluation failed for schedule %s, retrying next tick", schedule.ID)
		}
	}
}

// evaluate reloads the schedule for fresh state and runs one due-ness
// pass. Returning an error skips the schedule this tick only.
func (s *Scheduler) evaluate(ctx context.Context, scheduleID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule evaluation panic: %v", r)
		}
	}()

	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if !schedule.IsActive {
		return nil
	}

	switch schedule.Kind {
	case domain.KindImmediate:
		return s.evaluateImmediate(ctx, schedule)
	case domain.KindFixedTime:
		return s.evaluateFixedTime(ctx, schedule)
	case domain.KindInactivityTriggered:
		return s.evaluateInactivity(ctx, schedule)
	default:
		logrus.Warnf("[SCHEDULER] Schedule %s has unknown kind %q, skipping", schedule.ID, schedule.Kind)
		return nil
	}
}

// evaluateImmediate fires exactly once, ever.
func (s *Scheduler) evaluateImmediate(ctx context.Context, schedule *domain.Schedule) error {
	if schedule.LastRunAt != nil {
		return nil
	}
	if err := s.dispatchToGroup(ctx, schedule); err != nil {
		return err
	}

	now := s.nowFn()
	return s.schedules.UpdateRunState(ctx, schedule.ID, &now, nil, false)
}

// evaluateFixedTime fires when the current cycle's instant has arrived
// (with tolerance for poll jitter), then advances or exhausts the
// recurrence.
func (s *Scheduler) evaluateFixedTime(ctx context.Context, schedule *domain.Schedule) error {
	if schedule.NextRunAt == nil {
		// Never fires again; normalize the active flag.
		return s.schedules.UpdateRunState(ctx, schedule.ID, schedule.LastRunAt, nil, false)
	}

	now := s.nowFn()
	fireAt := schedule.NextRunAt.UTC()
	if now.Before(fireAt.Add(-s.cfg.FireTolerance)) {
		return nil
	}
	// Double-fire guard for loop re-entry: the cycle is done once
	// last_run_at reaches it. A pointer still stuck on that cycle
	// (outage backlog, an edit that re-seeded a past instant) is
	// advanced here instead of firing retroactively, so the schedule
	// stays live.
	if schedule.LastRunAt != nil && !schedule.LastRunAt.UTC().Before(fireAt) {
		if fireAt.After(now) {
			return nil
		}
		next, ok := rollRecurrence(schedule.Recurrence, fireAt, now)
		if !ok {
			logrus.Infof("[SCHEDULER] Schedule %s recurrence exhausted, deactivating", schedule.ID)
			return s.schedules.UpdateRunState(ctx, schedule.ID, schedule.LastRunAt, nil, false)
		}
		return s.schedules.UpdateRunState(ctx, schedule.ID, schedule.LastRunAt, &next, true)
	}

	if err := s.dispatchToGroup(ctx, schedule); err != nil {
		return err
	}

	// One catch-up fire covers any missed cycles; the pointer then
	// lands strictly past now so the loop cannot stall on a stale
	// instant.
	lastRun := s.nowFn()
	next, ok := rollRecurrence(schedule.Recurrence, fireAt, lastRun)
	if !ok {
		logrus.Infof("[SCHEDULER] Schedule %s recurrence exhausted, deactivating", schedule.ID)
		return s.schedules.UpdateRunState(ctx, schedule.ID, &lastRun, nil, false)
	}
	return s.schedules.UpdateRunState(ctx, schedule.ID, &lastRun, &next, true)
}

// rollRecurrence walks the recurrence from the cycle at `from` to the
// first instant strictly after now. ok=false means no future instant
// is left.
func rollRecurrence(rec domain.Recurrence, from, now time.Time) (time.Time, bool) {
	next, ok := domain.NextRun(rec, from)
	for ok && !next.After(now) {
		next, ok = domain.NextRun(rec, next)
	}
	return next, ok
}

// evaluateInactivity checks each group member's inactivity window and
// dispatches only to the ones past the threshold. The schedule itself
// stays active; the ledger keeps recipients at-most-once per period.
func (s *Scheduler) evaluateInactivity(ctx context.Context, schedule *domain.Schedule) error {
	threshold, err := schedule.Threshold.Duration()
	if err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Schedule %s has invalid threshold, skipping", schedule.ID)
		return nil
	}

	recipients, err := s.groups.Resolve(ctx, schedule.TargetGroupID)
	if err != nil {
		return err
	}

	now := s.nowFn()
	marker := schedule.PeriodMarker()
	activatedAt := schedule.ActivatedAt.UTC()

	var due []string
	for _, recipient := range recipients {
		lastActivity, err := s.activity.LastActivity(ctx, schedule.PageID, recipient)
		if err != nil {
			if domain.IsCollaboratorUnavailable(err) {
				// Whole page unusable this tick, retry next time.
				return err
			}
			logrus.WithError(err).Warnf("[SCHEDULER] Activity lookup failed for %s, skipping recipient", recipient)
			continue
		}
		if lastActivity == nil {
			// No baseline, never considered inactive.
			continue
		}
		last := lastActivity.UTC()
		// Only silence that started after arming counts; recipients
		// who went quiet before the campaign existed are off-limits.
		if !last.After(activatedAt) {
			continue
		}
		if now.Sub(last) < threshold {
			continue
		}

		sent, err := s.ledger.IsSent(ctx, schedule.ID, recipient, marker)
		if err != nil {
			logrus.WithError(err).Warnf("[SCHEDULER] Ledger check failed for %s, skipping recipient", recipient)
			continue
		}
		if sent {
			continue
		}
		due = append(due, recipient)
	}

	if len(due) == 0 {
		return nil
	}

	logrus.Infof("[SCHEDULER] Schedule %s: %d inactive recipients due", schedule.ID, len(due))
	if err := s.executor.Dispatch(ctx, schedule, due); err != nil {
		return err
	}

	lastRun := s.nowFn()
	return s.schedules.UpdateRunState(ctx, schedule.ID, &lastRun, schedule.NextRunAt, true)
}

// dispatchToGroup resolves the target group, filters recipients already
// ledgered for the period, and hands the rest to the executor.
func (s *Scheduler) dispatchToGroup(ctx context.Context, schedule *domain.Schedule) error {
	recipients, err := s.groups.Resolve(ctx, schedule.TargetGroupID)
	if err != nil {
		return err
	}

	marker := schedule.PeriodMarker()
	eligible := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		sent, err := s.ledger.IsSent(ctx, schedule.ID, recipient, marker)
		if err != nil {
			logrus.WithError(err).Warnf("[SCHEDULER] Ledger check failed for %s, skipping recipient", recipient)
			continue
		}
		if !sent {
			eligible = append(eligible, recipient)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return s.executor.Dispatch(ctx, schedule, eligible)
}

// ForceRun triggers a schedule immediately, bypassing due-ness. Run
// state advances exactly as if the loop had fired it.
func (s *Scheduler) ForceRun(ctx context.Context, scheduleID string) error {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}

	if err := s.dispatchToGroup(ctx, schedule); err != nil {
		return err
	}

	now := s.nowFn()
	switch schedule.Kind {
	case domain.KindImmediate:
		return s.schedules.UpdateRunState(ctx, schedule.ID, &now, nil, false)
	case domain.KindFixedTime:
		base := now
		if schedule.NextRunAt != nil {
			base = schedule.NextRunAt.UTC()
		}
		next, ok := rollRecurrence(schedule.Recurrence, base, now)
		if !ok {
			return s.schedules.UpdateRunState(ctx, schedule.ID, &now, nil, false)
		}
		return s.schedules.UpdateRunState(ctx, schedule.ID, &now, &next, true)
	default:
		return s.schedules.UpdateRunState(ctx, schedule.ID, &now, schedule.NextRunAt, schedule.IsActive)
	}
}

// acquireTickLock takes a short valkey lock so only one node runs a
// tick at a time. Without valkey the single-process model applies.
func (s *Scheduler) acquireTickLock(ctx context.Context) bool {
	if s.cache == nil {
		return true
	}
	key := s.cache.Key("lock", "scheduler", "tick")
	ttl := s.cfg.PollInterval / 2
	if ttl < time.Second {
		ttl = time.Second
	}
	inner := s.cache.Inner()
	err := inner.Do(ctx, inner.B().Set().Key(key).Value("1").Nx().Ex(ttl).Build()).Error()
	if err != nil {
		if valkey.IsNil(err) {
			return false
		}
		logrus.WithError(err).Debug("[SCHEDULER] Tick lock errored, proceeding without it")
		return true
	}
	return true
}

// PoolStats exposes the evaluation pool metrics for the status surface.
func (s *Scheduler) PoolStats() *msgworker.PoolStats {
	if s.pool == nil {
		return nil
	}
	stats := s.pool.GetStats()
	return &stats
}
