package msgworker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesDispatchedJobs(t *testing.T) {
	pool := NewEvalWorkerPool(4, 16)
	pool.Start(context.Background())
	defer pool.Stop()

	var processed int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.TryDispatch(EvalJob{
			PageID:     "page-1",
			ScheduleID: string(rune('a' + i%8)),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				atomic.AddInt64(&processed, 1)
				return nil
			},
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, int64(20), atomic.LoadInt64(&processed))
}

func TestPoolSerializesSameSchedule(t *testing.T) {
	pool := NewEvalWorkerPool(8, 64)
	pool.Start(context.Background())
	defer pool.Stop()

	var concurrent int64
	var maxConcurrent int64
	var wg sync.WaitGroup

	for i := 0; i < 30; i++ {
		wg.Add(1)
		pool.Dispatch(EvalJob{
			PageID:     "page-1",
			ScheduleID: "sched-1",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				cur := atomic.AddInt64(&concurrent, 1)
				for {
					prev := atomic.LoadInt64(&maxConcurrent)
					if cur <= prev || atomic.CompareAndSwapInt64(&maxConcurrent, prev, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&concurrent, -1)
				return nil
			},
		})
	}

	wg.Wait()
	// Same page|schedule key always hashes to the same worker, so the
	// evaluations must never overlap.
	assert.Equal(t, int64(1), atomic.LoadInt64(&maxConcurrent))
}

func TestPoolRejectsWhenStopped(t *testing.T) {
	pool := NewEvalWorkerPool(2, 4)
	pool.Start(context.Background())
	pool.Stop()

	ok := pool.TryDispatch(EvalJob{PageID: "p", ScheduleID: "s", Handler: func(ctx context.Context) error { return nil }})
	assert.False(t, ok)

	stats := pool.GetStats()
	assert.GreaterOrEqual(t, stats.TotalDropped, int64(1))
}

func TestPoolStatsCountProcessedAndErrors(t *testing.T) {
	pool := NewEvalWorkerPool(2, 8)
	pool.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	pool.Dispatch(EvalJob{PageID: "p", ScheduleID: "ok", Handler: func(ctx context.Context) error {
		defer wg.Done()
		return nil
	}})
	pool.Dispatch(EvalJob{PageID: "p", ScheduleID: "boom", Handler: func(ctx context.Context) error {
		defer wg.Done()
		return assert.AnError
	}})

	wg.Wait()
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, int64(2), stats.TotalDispatched)
	assert.Equal(t, int64(2), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.TotalErrors)
}
