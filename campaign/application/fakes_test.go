package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

// --- In-memory collaborators for loop/executor tests ---

type fakeScheduleRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{items: map[string]*domain.Schedule{}}
}

func (r *fakeScheduleRepo) put(s *domain.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.items[s.ID] = &cp
}

func (r *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	r.put(s)
	return nil
}

func (r *fakeScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return domain.ErrScheduleNotFound
	}
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *fakeScheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeScheduleRepo) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeScheduleRepo) List(ctx context.Context, pageID string) ([]*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Schedule
	for _, s := range r.items {
		if pageID == "" || s.PageID == pageID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListActive(ctx context.Context) ([]*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Schedule
	for _, s := range r.items {
		if s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) UpdateRunState(ctx context.Context, id string, lastRun, nextRun *time.Time, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.LastRunAt = lastRun
	s.NextRunAt = nextRun
	s.IsActive = isActive
	return nil
}

type fakeGroups struct {
	members map[string][]string
	errOn   map[string]error
	err     error
}

func (g *fakeGroups) CreateGroup(ctx context.Context, group *domain.RecipientGroup) error { return nil }
func (g *fakeGroups) DeleteGroup(ctx context.Context, id string) error                    { return nil }
func (g *fakeGroups) GetGroup(ctx context.Context, id string) (*domain.RecipientGroup, error) {
	return nil, domain.ErrGroupNotFound
}
func (g *fakeGroups) ListGroups(ctx context.Context, pageID string) ([]domain.RecipientGroup, error) {
	return nil, nil
}
func (g *fakeGroups) AddMember(ctx context.Context, groupID, recipientID string) error    { return nil }
func (g *fakeGroups) RemoveMember(ctx context.Context, groupID, recipientID string) error { return nil }
func (g *fakeGroups) Resolve(ctx context.Context, groupID string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	if err, ok := g.errOn[groupID]; ok {
		return nil, err
	}
	return g.members[groupID], nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]bool{}}
}

func ledgerKey(scheduleID, recipientID, marker string) string {
	return scheduleID + "|" + recipientID + "|" + marker
}

func (l *fakeLedger) IsSent(ctx context.Context, scheduleID, recipientID, marker string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[ledgerKey(scheduleID, recipientID, marker)], nil
}

func (l *fakeLedger) MarkSent(ctx context.Context, scheduleID, recipientID, marker string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(scheduleID, recipientID, marker)
	if l.entries[key] {
		return false, nil
	}
	l.entries[key] = true
	return true, nil
}

func (l *fakeLedger) Reset(ctx context.Context, scheduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries {
		if len(key) > len(scheduleID) && key[:len(scheduleID)+1] == scheduleID+"|" {
			delete(l.entries, key)
		}
	}
	return nil
}

type fakeTokens struct {
	token string
	err   error
}

func (t *fakeTokens) AccessToken(ctx context.Context, pageID string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	if t.token == "" {
		return "tok-" + pageID, nil
	}
	return t.token, nil
}

type sentMessage struct {
	Recipient string
	Kind      domain.MessageKind
	Payload   string
}

// fakeGraph records sends and fails on demand. failures maps
// "recipient|payload" to an error returned for the next N attempts
// (negative = always).
type fakeGraph struct {
	mu            sync.Mutex
	sent          []sentMessage
	attempts      map[string]int
	failures      map[string]error
	failureCounts map[string]int
	conversations []domain.Conversation
	messages      map[string][]domain.GraphMessage
	fetchErr      error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		attempts:      map[string]int{},
		failures:      map[string]error{},
		failureCounts: map[string]int{},
		messages:      map[string][]domain.GraphMessage{},
	}
}

func (g *fakeGraph) failWith(recipient, payload string, err error, times int) {
	key := recipient + "|" + payload
	g.failures[key] = err
	g.failureCounts[key] = times
}

func (g *fakeGraph) send(recipient string, kind domain.MessageKind, payload string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := recipient + "|" + payload
	g.attempts[key]++
	if err, ok := g.failures[key]; ok {
		count := g.failureCounts[key]
		if count < 0 || g.attempts[key] <= count {
			return err
		}
	}
	g.sent = append(g.sent, sentMessage{Recipient: recipient, Kind: kind, Payload: payload})
	return nil
}

func (g *fakeGraph) SendText(ctx context.Context, recipientID, text, token string) error {
	return g.send(recipientID, domain.MessageText, text)
}

func (g *fakeGraph) SendMedia(ctx context.Context, recipientID string, kind domain.MessageKind, url, token string) error {
	return g.send(recipientID, kind, url)
}

func (g *fakeGraph) FetchConversations(ctx context.Context, pageID, token string) ([]domain.Conversation, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.conversations, nil
}

func (g *fakeGraph) FetchMessages(ctx context.Context, conversationID, token string, limit int) ([]domain.GraphMessage, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.messages[conversationID], nil
}

func (g *fakeGraph) sentTo(recipient string) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentMessage
	for _, m := range g.sent {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []domain.DeliveryLogEntry
}

func (l *fakeLogs) Append(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeLogs) Find(ctx context.Context, filter domain.LogFilter) ([]domain.DeliveryLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.DeliveryLogEntry
	for _, e := range l.entries {
		if filter.ScheduleID != "" && e.ScheduleID != filter.ScheduleID {
			continue
		}
		if filter.RecipientID != "" && e.RecipientID != filter.RecipientID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *fakeLogs) Stats(ctx context.Context, pageID string) (domain.DeliveryStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := domain.DeliveryStats{PageID: pageID}
	for _, e := range l.entries {
		if pageID != "" && e.PageID != pageID {
			continue
		}
		stats.Total++
		switch e.Status {
		case domain.DeliverySent:
			stats.Sent++
		case domain.DeliveryFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (l *fakeLogs) DeleteBySchedule(ctx context.Context, scheduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.ScheduleID != scheduleID {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	return nil
}

// fakeActivityTracker serves canned last-activity instants.
type fakeActivityTracker struct {
	mu      sync.Mutex
	instant map[string]*time.Time // pageID|recipientID
	err     error
}

func newFakeActivityTracker() *fakeActivityTracker {
	return &fakeActivityTracker{instant: map[string]*time.Time{}}
}

func (f *fakeActivityTracker) set(pageID, recipientID string, t *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instant[pageID+"|"+recipientID] = t
}

func (f *fakeActivityTracker) LastActivity(ctx context.Context, pageID, recipientID string) (*time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instant[pageID+"|"+recipientID], nil
}

func (f *fakeActivityTracker) Observe(ctx context.Context, record *domain.ActivityRecord) error {
	instant := record.LastActivityAt
	f.set(record.PageID, record.RecipientID, &instant)
	return nil
}

// fakeActivityRepo backs ActivityTracker tests.
type fakeActivityRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ActivityRecord
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{records: map[string]*domain.ActivityRecord{}}
}

func (r *fakeActivityRepo) Get(ctx context.Context, pageID, recipientID string) (*domain.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pageID+"|"+recipientID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeActivityRepo) Upsert(ctx context.Context, record *domain.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records[record.PageID+"|"+record.RecipientID] = &cp
	return nil
}

func (r *fakeActivityRepo) ListByPage(ctx context.Context, pageID string) ([]domain.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ActivityRecord
	for _, rec := range r.records {
		if rec.PageID == pageID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")

func noSleep(ctx context.Context, d time.Duration) error { return nil }
