package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	campaignApp "github.com/AzielCF/az-fbm/campaign/application"
	campaignDomain "github.com/AzielCF/az-fbm/campaign/domain"
	domainSchedule "github.com/AzielCF/az-fbm/domains/schedule"
	pkgError "github.com/AzielCF/az-fbm/pkg/error"
)

type memScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]campaignDomain.Schedule
}

func newMemScheduleRepo() *memScheduleRepo {
	return &memScheduleRepo{schedules: make(map[string]campaignDomain.Schedule)}
}

func (r *memScheduleRepo) Create(ctx context.Context, s *campaignDomain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = *s
	return nil
}

func (r *memScheduleRepo) Update(ctx context.Context, s *campaignDomain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return campaignDomain.ErrScheduleNotFound
	}
	r.schedules[s.ID] = *s
	return nil
}

func (r *memScheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}

func (r *memScheduleRepo) GetByID(ctx context.Context, id string) (*campaignDomain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, campaignDomain.ErrScheduleNotFound
	}
	copied := s
	return &copied, nil
}

func (r *memScheduleRepo) List(ctx context.Context, pageID string) ([]*campaignDomain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*campaignDomain.Schedule
	for _, s := range r.schedules {
		if pageID == "" || s.PageID == pageID {
			copied := s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memScheduleRepo) ListActive(ctx context.Context) ([]*campaignDomain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*campaignDomain.Schedule
	for _, s := range r.schedules {
		if s.IsActive {
			copied := s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memScheduleRepo) UpdateRunState(ctx context.Context, id string, lastRun, nextRun *time.Time, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return campaignDomain.ErrScheduleNotFound
	}
	s.LastRunAt = lastRun
	s.NextRunAt = nextRun
	s.IsActive = isActive
	r.schedules[id] = s
	return nil
}

type memLedger struct {
	mu     sync.Mutex
	marks  map[string]bool
	resets []string
}

func newMemLedger() *memLedger {
	return &memLedger{marks: make(map[string]bool)}
}

func (l *memLedger) IsSent(ctx context.Context, scheduleID, recipientID, marker string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marks[scheduleID+"|"+recipientID+"|"+marker], nil
}

func (l *memLedger) MarkSent(ctx context.Context, scheduleID, recipientID, marker string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := scheduleID + "|" + recipientID + "|" + marker
	if l.marks[key] {
		return false, nil
	}
	l.marks[key] = true
	return true, nil
}

func (l *memLedger) Reset(ctx context.Context, scheduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets = append(l.resets, scheduleID)
	for key := range l.marks {
		if len(key) > len(scheduleID) && key[:len(scheduleID)] == scheduleID {
			delete(l.marks, key)
		}
	}
	return nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []campaignDomain.DeliveryLogEntry
	deleted []string
}

func (l *memLogs) Append(ctx context.Context, entry *campaignDomain.DeliveryLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *memLogs) Find(ctx context.Context, filter campaignDomain.LogFilter) ([]campaignDomain.DeliveryLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []campaignDomain.DeliveryLogEntry
	for _, e := range l.entries {
		if filter.ScheduleID != "" && e.ScheduleID != filter.ScheduleID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *memLogs) Stats(ctx context.Context, pageID string) (campaignDomain.DeliveryStats, error) {
	return campaignDomain.DeliveryStats{PageID: pageID}, nil
}

func (l *memLogs) DeleteBySchedule(ctx context.Context, scheduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, scheduleID)
	return nil
}

type memGroups struct {
	groups map[string]campaignDomain.RecipientGroup
}

func newMemGroups(ids ...string) *memGroups {
	g := &memGroups{groups: make(map[string]campaignDomain.RecipientGroup)}
	for _, id := range ids {
		g.groups[id] = campaignDomain.RecipientGroup{ID: id}
	}
	return g
}

func (g *memGroups) CreateGroup(ctx context.Context, group *campaignDomain.RecipientGroup) error {
	g.groups[group.ID] = *group
	return nil
}

func (g *memGroups) DeleteGroup(ctx context.Context, id string) error {
	delete(g.groups, id)
	return nil
}

func (g *memGroups) GetGroup(ctx context.Context, id string) (*campaignDomain.RecipientGroup, error) {
	group, ok := g.groups[id]
	if !ok {
		return nil, campaignDomain.ErrGroupNotFound
	}
	return &group, nil
}

func (g *memGroups) ListGroups(ctx context.Context, pageID string) ([]campaignDomain.RecipientGroup, error) {
	return nil, nil
}

func (g *memGroups) AddMember(ctx context.Context, groupID, recipientID string) error { return nil }

func (g *memGroups) RemoveMember(ctx context.Context, groupID, recipientID string) error { return nil }

func (g *memGroups) Resolve(ctx context.Context, groupID string) ([]string, error) { return nil, nil }

type nopExecutor struct{}

func (nopExecutor) Dispatch(ctx context.Context, schedule *campaignDomain.Schedule, recipients []string) error {
	return nil
}

type scheduleServiceHarness struct {
	service   domainSchedule.IScheduleUsecase
	schedules *memScheduleRepo
	ledger    *memLedger
	logs      *memLogs
	now       time.Time
}

func newScheduleServiceHarness(t *testing.T) *scheduleServiceHarness {
	t.Helper()
	schedules := newMemScheduleRepo()
	ledger := newMemLedger()
	logs := &memLogs{}
	groups := newMemGroups("g1")

	scheduler := campaignApp.NewScheduler(
		schedules, groups, ledger, nil, nopExecutor{}, nil, nil,
		campaignApp.SchedulerConfig{},
	)

	h := &scheduleServiceHarness{
		schedules: schedules,
		ledger:    ledger,
		logs:      logs,
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	service := NewScheduleService(schedules, ledger, logs, groups, scheduler).(*serviceSchedule)
	service.nowFn = func() time.Time { return h.now }
	h.service = service
	return h
}

func textMessages() []domainSchedule.MessagePayload {
	return []domainSchedule.MessagePayload{{Kind: "text", Payload: "hello", Order: 0}}
}

func TestCreateFixedTimeSeedsNextRun(t *testing.T) {
	h := newScheduleServiceHarness(t)
	at := h.now.Add(24 * time.Hour)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "promo",
		Kind:          "fixed_time",
		ScheduledAt:   &at,
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	assert.True(t, created.IsActive)
	require.NotNil(t, created.NextRunAt)
	assert.True(t, created.NextRunAt.Equal(at))
	assert.True(t, created.ActivatedAt.Equal(h.now))
}

func TestCreateRejectsUnknownGroup(t *testing.T) {
	h := newScheduleServiceHarness(t)

	_, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "missing",
		Name:          "promo",
		Kind:          "immediate",
		Messages:      textMessages(),
	})
	assert.ErrorIs(t, err, campaignDomain.ErrGroupNotFound)
}

func TestCreateValidationFailure(t *testing.T) {
	h := newScheduleServiceHarness(t)

	_, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "promo",
		Kind:          "fixed_time", // scheduled_at missing
		Messages:      textMessages(),
	})
	require.Error(t, err)
	var genericErr pkgError.GenericError
	require.ErrorAs(t, err, &genericErr)
	assert.Equal(t, "VALIDATION_ERROR", genericErr.ErrCode())
}

func TestUpdateRestartsActivationPeriod(t *testing.T) {
	h := newScheduleServiceHarness(t)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "welcome",
		Kind:          "immediate",
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	// Simulate a prior delivery in the current period.
	won, err := h.ledger.MarkSent(context.Background(), created.ID, "psid-1", created.PeriodMarker())
	require.NoError(t, err)
	require.True(t, won)

	h.now = h.now.Add(time.Hour)
	updated, err := h.service.Update(context.Background(), created.ID, domainSchedule.UpdateRequest{
		Name:     "welcome v2",
		Messages: textMessages(),
	})
	require.NoError(t, err)

	assert.Contains(t, h.ledger.resets, created.ID)
	assert.True(t, updated.ActivatedAt.After(created.ActivatedAt))
	assert.Nil(t, updated.LastRunAt)

	sent, err := h.ledger.IsSent(context.Background(), created.ID, "psid-1", updated.PeriodMarker())
	require.NoError(t, err)
	assert.False(t, sent, "new period must allow redelivery")
}

func TestUpdateRollsPastScheduledAtForward(t *testing.T) {
	h := newScheduleServiceHarness(t)
	at := h.now.Add(time.Hour)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "daily promo",
		Kind:          "fixed_time",
		ScheduledAt:   &at,
		Recurrence:    &domainSchedule.RecurrenceInput{Repeat: "daily"},
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	// Three days later an edit re-submits the original instant.
	h.now = h.now.Add(72 * time.Hour)
	updated, err := h.service.Update(context.Background(), created.ID, domainSchedule.UpdateRequest{
		Name:        "daily promo v2",
		ScheduledAt: &at,
		Recurrence:  &domainSchedule.RecurrenceInput{Repeat: "daily"},
		Messages:    textMessages(),
	})
	require.NoError(t, err)

	assert.True(t, updated.IsActive)
	require.NotNil(t, updated.NextRunAt)
	assert.True(t, updated.NextRunAt.After(h.now), "a past instant must not fire retroactively")
}

func TestUpdatePastOneShotDeactivates(t *testing.T) {
	h := newScheduleServiceHarness(t)
	at := h.now.Add(time.Hour)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "one shot",
		Kind:          "fixed_time",
		ScheduledAt:   &at,
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	h.now = h.now.Add(48 * time.Hour)
	updated, err := h.service.Update(context.Background(), created.ID, domainSchedule.UpdateRequest{
		Name:        "one shot v2",
		ScheduledAt: &at,
		Messages:    textMessages(),
	})
	require.NoError(t, err)

	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.NextRunAt)
}

func TestToggleReactivateRollsNextRunForward(t *testing.T) {
	h := newScheduleServiceHarness(t)
	at := h.now.Add(time.Hour)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "daily promo",
		Kind:          "fixed_time",
		ScheduledAt:   &at,
		Recurrence:    &domainSchedule.RecurrenceInput{Repeat: "daily"},
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	_, err = h.service.Toggle(context.Background(), created.ID, false)
	require.NoError(t, err)

	// Reactivate three days later: missed cycles must not fire.
	h.now = h.now.Add(72 * time.Hour)
	reactivated, err := h.service.Toggle(context.Background(), created.ID, true)
	require.NoError(t, err)

	assert.True(t, reactivated.IsActive)
	require.NotNil(t, reactivated.NextRunAt)
	assert.True(t, reactivated.NextRunAt.After(h.now), "next run must be in the future")
	assert.Contains(t, h.ledger.resets, created.ID)
}

func TestToggleReactivateOneShotPastDeactivates(t *testing.T) {
	h := newScheduleServiceHarness(t)
	at := h.now.Add(time.Hour)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "one shot",
		Kind:          "fixed_time",
		ScheduledAt:   &at,
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	_, err = h.service.Toggle(context.Background(), created.ID, false)
	require.NoError(t, err)

	h.now = h.now.Add(48 * time.Hour)
	reactivated, err := h.service.Toggle(context.Background(), created.ID, true)
	require.NoError(t, err)

	assert.False(t, reactivated.IsActive, "an exhausted one-shot stays off")
}

func TestDeleteCascadesLedgerAndLogs(t *testing.T) {
	h := newScheduleServiceHarness(t)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "welcome",
		Kind:          "immediate",
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	require.NoError(t, h.service.Delete(context.Background(), created.ID))

	assert.Contains(t, h.ledger.resets, created.ID)
	assert.Contains(t, h.logs.deleted, created.ID)
	_, err = h.service.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, campaignDomain.ErrScheduleNotFound)
}

func TestStatusCountsAndHumanizes(t *testing.T) {
	h := newScheduleServiceHarness(t)

	created, err := h.service.Create(context.Background(), domainSchedule.CreateRequest{
		PageID:        "p1",
		TargetGroupID: "g1",
		Name:          "welcome",
		Kind:          "immediate",
		Messages:      textMessages(),
	})
	require.NoError(t, err)

	for _, status := range []campaignDomain.DeliveryStatus{campaignDomain.DeliverySent, campaignDomain.DeliverySent, campaignDomain.DeliveryFailed} {
		require.NoError(t, h.logs.Append(context.Background(), &campaignDomain.DeliveryLogEntry{
			ScheduleID: created.ID,
			PageID:     "p1",
			Status:     status,
		}))
	}
	lastRun := h.now.Add(-time.Hour)
	require.NoError(t, h.schedules.UpdateRunState(context.Background(), created.ID, &lastRun, nil, true))

	status, err := h.service.Status(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), status.Sent)
	assert.Equal(t, int64(1), status.Failed)
	assert.NotEmpty(t, status.LastRunHuman)
}
