// Package deliveryq is the in-process delivery queue: a priority-ordered set
// of pending jobs, a periodic dispatch tick, and the retry scheduler. Jobs do
// not survive a process restart.
package deliveryq

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferriqa/ferriqa/internal/idgen"
	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultTickInterval  = time.Second
	DefaultMaxConcurrent = 10

	// crashRetryCap bounds the fallback delay used when a processor crashes
	// and no delay function is injected.
	crashRetryCap = time.Minute
)

// Processor is the worker callback bound via SetProcessor.
type Processor interface {
	ProcessJob(ctx context.Context, job *models.DeliveryJob) error
}

// DelayFunc computes the retry delay after a crashed attempt.
type DelayFunc func(attempt int) time.Duration

// CrashHook persists a failed delivery record when ProcessJob escapes with an
// error or panic, so no attempt is silently lost.
type CrashHook func(ctx context.Context, job *models.DeliveryJob, cause error)

type Stats struct {
	Pending    int   `json:"pending"`
	Processing int64 `json:"processing"`
}

type Queue struct {
	mu   sync.Mutex
	jobs []*models.DeliveryJob

	processor  Processor
	onCrash    CrashHook
	crashDelay DelayFunc

	tickInterval  time.Duration
	maxConcurrent int64
	processing    atomic.Int64

	wake    chan struct{}
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger *logging.Logger

	// now is overridable so tests can pin tick boundaries.
	now func() time.Time
}

type Option func(*Queue)

func WithTickInterval(interval time.Duration) Option {
	return func(q *Queue) {
		q.tickInterval = interval
	}
}

func WithMaxConcurrent(max int) Option {
	return func(q *Queue) {
		q.maxConcurrent = int64(max)
	}
}

func WithCrashHook(hook CrashHook) Option {
	return func(q *Queue) {
		q.onCrash = hook
	}
}

// WithCrashDelay injects the retry-delay source used after a crashed attempt.
// Without it the queue falls back to 2^attempt seconds capped at one minute.
func WithCrashDelay(fn DelayFunc) Option {
	return func(q *Queue) {
		q.crashDelay = fn
	}
}

func New(logger *logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		tickInterval:  DefaultTickInterval,
		maxConcurrent: DefaultMaxConcurrent,
		wake:          make(chan struct{}, 1),
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) SetProcessor(p Processor) {
	q.processor = p
}

// Enqueue inserts a job and triggers an immediate processing tick so the first
// delivery does not wait out the tick interval.
func (q *Queue) Enqueue(job *models.DeliveryJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// ScheduleRetry inserts a new job cloned from the given one: attempt+1,
// priority 0 (below fresh dispatches, which default to 1), a fresh delivery ID
// and scheduledFor pushed out by the delay.
func (q *Queue) ScheduleRetry(job *models.DeliveryJob, delay time.Duration) {
	retry := *job
	retry.DeliveryID = idgen.DeliveryID()
	retry.Attempt = job.Attempt + 1
	retry.Priority = 0
	retry.ScheduledFor = q.now().Add(delay)

	q.mu.Lock()
	q.jobs = append(q.jobs, &retry)
	q.mu.Unlock()

	q.logger.Info("retry scheduled",
		zap.String("delivery_id", retry.DeliveryID),
		zap.String("previous_delivery_id", job.DeliveryID),
		zap.Int64("webhook_id", retry.WebhookID),
		zap.Int("attempt", retry.Attempt),
		zap.Duration("delay", delay))
}

// Start launches the tick loop. It returns immediately; processing happens on
// background goroutines until Stop or context cancellation.
func (q *Queue) Start(ctx context.Context) {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-q.wake:
			}
			q.processCycle(ctx)
		}
	}()
}

// Stop halts further ticks and waits for the tick loop to exit. Pending jobs
// stay in memory; in-flight deliveries run to completion and their results are
// still logged by the processor.
func (q *Queue) Stop() {
	if !q.started.CompareAndSwap(true, false) {
		return
	}
	q.cancel()
	<-q.done
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending := len(q.jobs)
	q.mu.Unlock()
	return Stats{Pending: pending, Processing: q.processing.Load()}
}

// processCycle walks the queue once in (priority desc, scheduledFor asc) order
// and dispatches every due job up to the concurrency cap. Jobs seen this cycle
// are tracked by delivery ID so a retry enqueued mid-cycle cannot run twice.
func (q *Queue) processCycle(ctx context.Context) {
	cycleStart := q.now()
	dispatched := make(map[string]struct{})

	// Workers outlive Stop: in-flight deliveries run to their own timeout and
	// are still logged, so they must not inherit the tick loop's cancellation.
	workerCtx := context.WithoutCancel(ctx)

	for {
		job := q.takeDue(cycleStart, dispatched)
		if job == nil {
			return
		}
		dispatched[job.DeliveryID] = struct{}{}
		q.processing.Add(1)
		go q.run(workerCtx, job)
	}
}

func (q *Queue) takeDue(cycleStart time.Time, dispatched map[string]struct{}) *models.DeliveryJob {
	if q.processing.Load() >= q.maxConcurrent {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	sort.SliceStable(q.jobs, func(i, j int) bool {
		if q.jobs[i].Priority != q.jobs[j].Priority {
			return q.jobs[i].Priority > q.jobs[j].Priority
		}
		return q.jobs[i].ScheduledFor.Before(q.jobs[j].ScheduledFor)
	})

	for i, job := range q.jobs {
		if job.ScheduledFor.After(cycleStart) {
			continue
		}
		if _, seen := dispatched[job.DeliveryID]; seen {
			continue
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return job
	}
	return nil
}

func (q *Queue) run(ctx context.Context, job *models.DeliveryJob) {
	defer q.processing.Add(-1)

	err := q.safeProcess(ctx, job)
	if err == nil {
		return
	}

	// Processor bug, not an HTTP failure: HTTP outcomes are handled inside
	// ProcessJob. Persist a failed record and retry if attempts remain.
	q.logger.Ctx(ctx).Error("job processing crashed",
		zap.String("delivery_id", job.DeliveryID),
		zap.Int64("webhook_id", job.WebhookID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))

	if q.onCrash != nil {
		q.onCrash(ctx, job, err)
	}
	if job.Attempt < job.MaxAttempts {
		q.ScheduleRetry(job, q.crashRetryDelay(job.Attempt))
	}
}

func (q *Queue) safeProcess(ctx context.Context, job *models.DeliveryJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in processor: %v", r)
		}
	}()
	if q.processor == nil {
		return fmt.Errorf("no processor bound")
	}
	return q.processor.ProcessJob(ctx, job)
}

func (q *Queue) crashRetryDelay(attempt int) time.Duration {
	if q.crashDelay != nil {
		return q.crashDelay(attempt)
	}
	delay := time.Second
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= crashRetryCap {
			return crashRetryCap
		}
	}
	return delay
}
