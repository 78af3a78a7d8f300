package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrUnknownType is returned for jobs whose type has no registered handler.
	ErrUnknownType = errors.New("jobs: no handler for job type")
)

// Job is one unit of background work. Type selects the handler.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
	// Context, when set, is cancelled into the context the handler receives.
	Context context.Context
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// Option tunes how one job type is handled.
type Option func(*route)

// WithRetries overrides the queue-wide retry budget for a job type. A value
// below zero disables retries.
func WithRetries(n int) Option {
	return func(r *route) {
		if n < 0 {
			n = 0
		}
		r.retries = n
	}
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	// MaxRetries is the default budget per job type; below zero disables retries.
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// Observe, when set, receives how long each job waited before a worker took it.
	Observe func(jobType string, waited time.Duration)
}

type route struct {
	handler Handler
	retries int
}

// Queue is a bounded in-memory pool shared by every background job type:
// generation runs and catalogue warm-ups both go through it so the number of
// busy goroutines stays fixed.
type Queue struct {
	name       string
	workers    int
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
	observe    func(jobType string, waited time.Duration)

	routesMu sync.RWMutex
	routes   map[string]route

	pending chan Job
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewQueue builds an idle queue. Register handlers with Handle, then Start it.
func NewQueue(name string, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:       name,
		workers:    cfg.Workers,
		retries:    cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		observe:    cfg.Observe,
		routes:     make(map[string]route),
		pending:    make(chan Job, cfg.BufferSize),
	}
}

// Handle registers h for jobType, replacing any earlier registration.
func (q *Queue) Handle(jobType string, h Handler, opts ...Option) {
	r := route{handler: h, retries: q.retries}
	for _, opt := range opts {
		opt(&r)
	}
	q.routesMu.Lock()
	q.routes[jobType] = r
	q.routesMu.Unlock()
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.workers), zap.Int("buffer", cap(q.pending)))
}

// Stop cancels in-flight handlers and waits for the workers to exit. Jobs
// still buffered are then handed to their handlers with the cancelled
// context, so work with waiters (generation runs) settles instead of
// vanishing. They are not retried.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	drained := 0
	for {
		select {
		case job := <-q.pending:
			r, _ := q.lookup(job.Type)
			if err := q.execute(r.handler, job); err != nil {
				q.logger.Debug("job abandoned at shutdown", zap.String("job_id", job.ID), zap.Error(err))
			}
			drained++
		default:
			q.logger.Info("queue stopped", zap.Int("drained", drained))
			return
		}
	}
}

// Enqueue buffers a job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	ctx, err := q.admit(&job)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.pending <- job:
		return nil
	}
}

// TryEnqueue buffers a job or fails at once with ErrQueueFull.
func (q *Queue) TryEnqueue(job Job) error {
	ctx, err := q.admit(&job)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.pending <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// Pending returns the number of buffered jobs not yet picked up.
func (q *Queue) Pending() int {
	return len(q.pending)
}

// Check fails while the buffer is full, i.e. while TryEnqueue would refuse work.
func (q *Queue) Check(context.Context) error {
	if n := len(q.pending); n >= cap(q.pending) {
		return fmt.Errorf("queue %s: %w (%d pending)", q.name, ErrQueueFull, n)
	}
	return nil
}

// admit rejects jobs the queue cannot run and stamps the enqueue time.
func (q *Queue) admit(job *Job) (context.Context, error) {
	q.mu.Lock()
	ctx, running := q.ctx, q.running
	q.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("queue %s not started", q.name)
	}
	if _, ok := q.lookup(job.Type); !ok {
		return nil, fmt.Errorf("queue %s: %w %q", q.name, ErrUnknownType, job.Type)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	return ctx, nil
}

func (q *Queue) lookup(jobType string) (route, bool) {
	q.routesMu.RLock()
	defer q.routesMu.RUnlock()
	r, ok := q.routes[jobType]
	return r, ok
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			r, _ := q.lookup(job.Type)
			if err := q.execute(r.handler, job); err != nil {
				q.retry(job, r.retries, err)
			}
		}
	}
}

func (q *Queue) execute(h Handler, job Job) error {
	if q.observe != nil {
		q.observe(job.Type, time.Since(job.Enqueued))
	}
	ctx := q.ctx
	if job.Context != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(q.ctx)
		defer cancel()
		stop := context.AfterFunc(job.Context, cancel)
		defer stop()
	}
	return h(ctx, job)
}

func (q *Queue) retry(job Job, budget int, cause error) {
	job.Attempt++
	log := q.logger.With(zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(cause))
	if job.Attempt > budget {
		log.Error("job failed", zap.Int("attempts", job.Attempt))
		return
	}
	log.Warn("job failed, retrying", zap.Int("attempt", job.Attempt), zap.Duration("delay", q.retryDelay))

	time.AfterFunc(q.retryDelay, func() {
		if q.ctx.Err() != nil {
			return
		}
		if err := q.Enqueue(job); err != nil {
			log.Error("failed to requeue job", zap.NamedError("requeue_error", err))
		}
	})
}
