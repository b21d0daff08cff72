package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// EvalJob is one schedule evaluation unit. Jobs sharing the same
// PageID|ScheduleID key always land on the same worker, which gives the
// per-schedule serialization guarantee: no two concurrent evaluations
// of the same schedule.
type EvalJob struct {
	PageID     string
	ScheduleID string
	Handler    func(ctx context.Context) error
}

// PoolStats holds real-time pool metrics.
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveJobs      map[string]int `json:"active_jobs"` // pageID|scheduleID -> worker_id
}

// WorkerStats holds per-worker metrics.
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeJobEntry struct {
	workerID  int
	updatedAt time.Time
}

// EvalWorkerPool runs schedule evaluations on a fixed set of workers
// with bounded per-worker queues.
type EvalWorkerPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeJobsMu    sync.RWMutex
	activeJobs      map[string]activeJobEntry
	startTime       time.Time
}

type worker struct {
	id            int
	jobQueue      chan EvalJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *EvalWorkerPool
}

// NewEvalWorkerPool creates a pool of schedule evaluation workers.
func NewEvalWorkerPool(numWorkers, queueSize int) *EvalWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &EvalWorkerPool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		activeJobs: make(map[string]activeJobEntry),
		stopCh:     make(chan struct{}),
		startTime:  time.Now(),
	}
}

// Start launches all workers.
func (p *EvalWorkerPool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				now := time.Now()
				p.activeJobsMu.Lock()
				for k, v := range p.activeJobs {
					if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 30*time.Second {
						delete(p.activeJobs, k)
					}
				}
				p.activeJobsMu.Unlock()
			}
		}
	}()

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan EvalJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[EVAL_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues a job on its shard without blocking. Returns
// false when the shard's queue is full or the pool is stopped; the
// caller retries on the next tick.
func (p *EvalWorkerPool) TryDispatch(job EvalJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.PageID, job.ScheduleID)
	atomic.AddInt64(&p.totalDispatched, 1)

	jobKey := job.PageID + "|" + job.ScheduleID
	p.activeJobsMu.Lock()
	p.activeJobs[jobKey] = activeJobEntry{workerID: shard, updatedAt: time.Now()}
	p.activeJobsMu.Unlock()

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		return true
	}
	p.activeJobsMu.Lock()
	delete(p.activeJobs, jobKey)
	p.activeJobsMu.Unlock()

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[EVAL_POOL] Worker %d queue full (or stopped), dropping evaluation for %s|%s",
		shard, job.PageID, job.ScheduleID)
	return false
}

// Dispatch enqueues a job, dropping it silently when the shard is full.
func (p *EvalWorkerPool) Dispatch(job EvalJob) {
	_ = p.TryDispatch(job)
}

// Stop shuts the pool down gracefully, letting in-flight jobs finish.
func (p *EvalWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[EVAL_POOL] Stopping workers...")

		for _, w := range p.workers {
			w.cancel()
			close(w.jobQueue)
		}

		p.wg.Wait()

		logrus.Info("[EVAL_POOL] All workers stopped")
	})
}

// shardFor picks the worker for a schedule using a consistent hash.
func (p *EvalWorkerPool) shardFor(pageID, scheduleID string) int {
	key := pageID + "|" + scheduleID
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns a snapshot of pool metrics.
func (p *EvalWorkerPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}

		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	now := time.Now()
	p.activeJobsMu.Lock()
	activeSnapshot := make(map[string]int, len(p.activeJobs))
	for k, v := range p.activeJobs {
		if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 30*time.Second {
			delete(p.activeJobs, k)
			continue
		}
		activeSnapshot[k] = v.workerID
	}
	p.activeJobsMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
		ActiveJobs:      activeSnapshot,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[EVAL_POOL] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[EVAL_POOL] Worker %d shutting down", w.id)
				return
			}

			func() {
				jobKey := job.PageID + "|" + job.ScheduleID

				atomic.StoreInt32(&w.isProcessing, 1)
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.pool.totalErrors, 1)
						logrus.Errorf("[EVAL_POOL] Worker %d panic for %s: %v", w.id, jobKey, r)
					}
					atomic.StoreInt32(&w.isProcessing, 0)
					atomic.AddInt64(&w.jobsProcessed, 1)
					atomic.AddInt64(&w.pool.totalProcessed, 1)
				}()

				if err := job.Handler(w.ctx); err != nil {
					atomic.AddInt64(&w.pool.totalErrors, 1)
					logrus.WithError(err).Errorf("[EVAL_POOL] Worker %d evaluation failed for %s", w.id, jobKey)
				}
			}()

		case <-w.ctx.Done():
			logrus.Debugf("[EVAL_POOL] Worker %d context cancelled, draining queue...", w.id)
			w.drainQueue()
			return
		}
	}
}

// drainQueue finishes queued jobs after cancellation so accepted work
// is never silently lost.
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.pool.totalErrors, 1)
					}
					atomic.AddInt64(&w.jobsProcessed, 1)
					atomic.AddInt64(&w.pool.totalProcessed, 1)
				}()
				if err := job.Handler(context.Background()); err != nil {
					atomic.AddInt64(&w.pool.totalErrors, 1)
				}
			}()
		default:
			return
		}
	}
}
