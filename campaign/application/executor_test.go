package application

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-fbm/campaign/domain"
)

type executorHarness struct {
	graph    *fakeGraph
	logs     *fakeLogs
	ledger   *fakeLedger
	executor *DeliveryExecutor
}

func newExecutorHarness(t *testing.T) *executorHarness {
	t.Helper()
	h := &executorHarness{
		graph:  newFakeGraph(),
		logs:   &fakeLogs{},
		ledger: newFakeLedger(),
	}
	h.executor = NewDeliveryExecutor(h.graph, &fakeTokens{}, h.logs, h.ledger, ExecutorConfig{
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	})
	h.executor.SetSleepFunc(noSleep)
	return h
}

func threeMessageSchedule() *domain.Schedule {
	return &domain.Schedule{
		ID:            "sched-1",
		PageID:        "page-1",
		TargetGroupID: "g1",
		Kind:          domain.KindImmediate,
		ActivatedAt:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Messages: []domain.MessageSpec{
			{Kind: domain.MessageText, Payload: "msg-1", Order: 1},
			{Kind: domain.MessageText, Payload: "msg-2", Order: 2},
			{Kind: domain.MessageText, Payload: "msg-3", Order: 3},
		},
		IsActive: true,
	}
}

func TestDispatchSendsOrderedSequence(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	// Stored out of order; the executor must follow Order.
	s.Messages = []domain.MessageSpec{s.Messages[2], s.Messages[0], s.Messages[1]}

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	sent := h.graph.sentTo("psid-1")
	require.Len(t, sent, 3)
	assert.Equal(t, "msg-1", sent[0].Payload)
	assert.Equal(t, "msg-2", sent[1].Payload)
	assert.Equal(t, "msg-3", sent[2].Payload)
}

func TestPartialSequenceFailure(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()

	// Message 2 fails permanently for the first recipient only.
	h.graph.failWith("psid-1", "msg-2", &domain.PermanentDeliveryError{Code: 551, Message: "person unavailable"}, -1)

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1", "psid-2"}))

	// Message 3 never attempted for psid-1.
	sentFirst := h.graph.sentTo("psid-1")
	require.Len(t, sentFirst, 1)
	assert.Equal(t, "msg-1", sentFirst[0].Payload)

	// The next recipient's sequence still starts at message 1.
	sentSecond := h.graph.sentTo("psid-2")
	require.Len(t, sentSecond, 3)
	assert.Equal(t, "msg-1", sentSecond[0].Payload)

	// Both recipients are ledgered: partial failure is logged, not
	// retried on the next tick.
	marker := s.PeriodMarker()
	for _, psid := range []string{"psid-1", "psid-2"} {
		marked, err := h.ledger.IsSent(context.Background(), s.ID, psid, marker)
		require.NoError(t, err)
		assert.True(t, marked, psid)
	}

	failed, err := h.logs.Find(context.Background(), domain.LogFilter{RecipientID: "psid-1", Status: domain.DeliveryFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "person unavailable")
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	s.Messages = s.Messages[:1]

	// Two rate-limit rejections, then success.
	h.graph.failWith("psid-1", "msg-1", &domain.TransientDeliveryError{Code: 613, Message: "rate limited"}, 2)

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	assert.Len(t, h.graph.sentTo("psid-1"), 1)
	assert.Equal(t, 3, h.graph.attempts["psid-1|msg-1"])

	// Exactly one log entry despite the retries.
	logs, err := h.logs.Find(context.Background(), domain.LogFilter{RecipientID: "psid-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.DeliverySent, logs[0].Status)
}

func TestTransientFailureExhaustsRetries(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	s.Messages = s.Messages[:1]

	h.graph.failWith("psid-1", "msg-1", &domain.TransientDeliveryError{Code: 4, Message: "throttled"}, -1)

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	assert.Equal(t, 3, h.graph.attempts["psid-1|msg-1"])

	logs, err := h.logs.Find(context.Background(), domain.LogFilter{RecipientID: "psid-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.DeliveryFailed, logs[0].Status)
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	s.Messages = s.Messages[:1]

	h.graph.failWith("psid-1", "msg-1", &domain.PermanentDeliveryError{Code: 10, Message: "permission denied"}, -1)

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))
	assert.Equal(t, 1, h.graph.attempts["psid-1|msg-1"])
}

func TestDispatchSkipsAlreadyLedgeredRecipients(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()

	_, err := h.ledger.MarkSent(context.Background(), s.ID, "psid-1", s.PeriodMarker())
	require.NoError(t, err)

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1", "psid-2"}))

	assert.Empty(t, h.graph.sentTo("psid-1"))
	assert.Len(t, h.graph.sentTo("psid-2"), 3)
}

func TestDispatchCollaboratorDownNothingAttempted(t *testing.T) {
	h := newExecutorHarness(t)
	h.executor.tokens = &fakeTokens{err: errBoom}
	s := threeMessageSchedule()

	err := h.executor.Dispatch(context.Background(), s, []string{"psid-1"})
	require.Error(t, err)
	assert.True(t, domain.IsCollaboratorUnavailable(err))

	assert.Empty(t, h.graph.sent)
	logs, findErr := h.logs.Find(context.Background(), domain.LogFilter{})
	require.NoError(t, findErr)
	assert.Empty(t, logs)

	marked, isErr := h.ledger.IsSent(context.Background(), s.ID, "psid-1", s.PeriodMarker())
	require.NoError(t, isErr)
	assert.False(t, marked)
}

func TestMediaMessagesRouteToSendMedia(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	s.Messages = []domain.MessageSpec{
		{Kind: domain.MessageImage, Payload: "https://cdn.example.com/a.png", Order: 1},
		{Kind: domain.MessageVideo, Payload: "https://cdn.example.com/b.mp4", Order: 2},
	}

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	sent := h.graph.sentTo("psid-1")
	require.Len(t, sent, 2)
	assert.Equal(t, domain.MessageImage, sent[0].Kind)
	assert.Equal(t, domain.MessageVideo, sent[1].Kind)
}

func TestExcerptTruncatesLongPayloads(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	s.Messages = []domain.MessageSpec{{Kind: domain.MessageText, Payload: string(long), Order: 1}}

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	logs, err := h.logs.Find(context.Background(), domain.LogFilter{RecipientID: "psid-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].Excerpt, excerptLimit)
}

func TestExcerptKeepsRuneBoundaries(t *testing.T) {
	h := newExecutorHarness(t)
	s := threeMessageSchedule()
	// One ASCII byte then 3-byte runes, so the byte limit lands mid-rune.
	long := "a" + strings.Repeat("€", 60)
	s.Messages = []domain.MessageSpec{{Kind: domain.MessageText, Payload: long, Order: 1}}

	require.NoError(t, h.executor.Dispatch(context.Background(), s, []string{"psid-1"}))

	logs, err := h.logs.Find(context.Background(), domain.LogFilter{RecipientID: "psid-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, utf8.ValidString(logs[0].Excerpt))
	assert.LessOrEqual(t, len(logs[0].Excerpt), excerptLimit)
}
