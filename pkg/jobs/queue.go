package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/edu-portal-api/pkg/config"
)

// Job is a unit of background work, such as an audit log write.
type Job struct {
	ID       string
	Kind     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a single job.
type Handler func(context.Context, Job) error

// Queue is an in-memory dispatcher that keeps slow writes (audit trail)
// off the request path. Jobs are best-effort: a job that exhausts its
// retries is logged and dropped.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue from the audit section of the configuration.
func NewQueue(name string, handler Handler, cfg config.AuditConfig, logger *zap.Logger) *Queue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = workers * 4
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    workers,
		maxRetries: retries,
		retryDelay: time.Second,
		logger:     logger,
		jobs:       make(chan Job, buffer),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue, blocking when the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

func (q *Queue) retry(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "kind", job.Kind, "error", err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
