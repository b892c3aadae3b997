// Package tasks implements the in-process task orchestrator: a worker pool
// consuming class-of-work queues, and a background scheduler for the
// periodic sweeps.
//
// Units of work execute independently to completion or failure; nothing
// blocks waiting on another unit. Each unit carries a context deadline,
// failures marked Retryable are re-run with backoff up to a bounded attempt
// count, and every terminal outcome is recorded in an in-memory status
// store queryable by task id. Correctness under retry rests on the
// pipeline's idempotency gates, not on delivery-count guarantees.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Queue names used by the pipeline. Callers may configure additional ones.
const (
	QueueMessages  = "messages"
	QueueOrders    = "orders"
	QueueSummaries = "summaries"
)

// Task status values.
const (
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
)

// Job is one unit of work. The returned value, when non-nil, is stored on
// the task record for later retrieval.
type Job func(ctx context.Context) (any, error)

// TaskInfo is the queryable record of one submitted task.
type TaskInfo struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Result     any       `json:"result,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Config controls pool sizing, retry policy, and the dispatch throttle.
type Config struct {
	// Workers and QueueSize apply per queue.
	Workers   int
	QueueSize int

	// TaskTimeout bounds a single execution attempt.
	TaskTimeout time.Duration

	// MaxAttempts caps executions of one task, first try included.
	MaxAttempts int
	// RetryBackoff is the base delay before a retry; attempt N waits N
	// times this.
	RetryBackoff time.Duration

	// RateRPS/RateBurst throttle dispatch across all queues. RateRPS <= 0
	// disables the throttle.
	RateRPS   float64
	RateBurst int

	// RetainTasks caps the number of finished task records kept for
	// status queries.
	RetainTasks int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.RetainTasks <= 0 {
		c.RetainTasks = 10_000
	}
	return c
}

type queued struct {
	info *TaskInfo
	job  Job
}

// Pool is the worker pool. Safe for concurrent use.
type Pool struct {
	cfg     Config
	log     zerolog.Logger
	limiter *rate.Limiter

	queues map[string]chan queued
	wg     sync.WaitGroup

	// lifeMu orders Submit's channel sends before Close's channel closes.
	// Submit holds it shared for the duration of the send.
	lifeMu sync.RWMutex
	closed bool

	mu       sync.Mutex
	tasks    map[string]*TaskInfo
	finished []string // eviction order for finished task records

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPool starts workers for the standard pipeline queues.
func NewPool(cfg Config, log zerolog.Logger) *Pool {
	return NewPoolWithQueues(cfg, log, QueueMessages, QueueOrders, QueueSummaries)
}

// NewPoolWithQueues starts cfg.Workers workers per named queue.
func NewPoolWithQueues(cfg Config, log zerolog.Logger, queues ...string) *Pool {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		log:     log.With().Str("component", "taskpool").Logger(),
		queues:  make(map[string]chan queued, len(queues)),
		tasks:   make(map[string]*TaskInfo),
		baseCtx: ctx,
		cancel:  cancel,
	}
	if cfg.RateRPS > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}
	for _, name := range queues {
		ch := make(chan queued, cfg.QueueSize)
		p.queues[name] = ch
		for i := 0; i < cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker(name, ch)
		}
	}
	return p
}

// Submit enqueues a job and returns its task id. Blocks while the queue
// buffer is full; fails fast once the pool is closing.
func (p *Pool) Submit(queue, kind string, job Job) (string, error) {
	ch, ok := p.queues[queue]
	if !ok {
		return "", ErrUnknownQueue
	}

	info := &TaskInfo{
		ID:         uuid.NewString(),
		Queue:      queue,
		Kind:       kind,
		Status:     TaskQueued,
		EnqueuedAt: time.Now().UTC(),
	}

	p.lifeMu.RLock()
	defer p.lifeMu.RUnlock()
	if p.closed {
		return "", ErrPoolClosed
	}

	p.mu.Lock()
	p.tasks[info.ID] = info
	p.mu.Unlock()

	ch <- queued{info: info, job: job}
	queueDepth.WithLabelValues(queue).Set(float64(len(ch)))
	return info.ID, nil
}

// Status returns the record for a task id, or false when unknown (never
// submitted, or evicted from the finished-task retention window).
func (p *Pool) Status(id string) (TaskInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return *info, true
}

// Close stops accepting work, drains the queues, and waits for in-flight
// tasks to finish.
func (p *Pool) Close() {
	p.lifeMu.Lock()
	if p.closed {
		p.lifeMu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.queues {
		close(ch)
	}
	p.lifeMu.Unlock()
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker(queue string, ch chan queued) {
	defer p.wg.Done()
	for q := range ch {
		queueDepth.WithLabelValues(queue).Set(float64(len(ch)))
		if p.limiter != nil {
			if err := p.limiter.Wait(p.baseCtx); err != nil {
				p.setOutcome(q.info, TaskFailed, nil, err)
				continue
			}
		}
		p.run(queue, q)
	}
}

// run executes one task, retrying failures marked Retryable.
func (p *Pool) run(queue string, q queued) {
	tasksInflight.WithLabelValues(queue).Inc()
	defer tasksInflight.WithLabelValues(queue).Dec()

	p.mu.Lock()
	q.info.Status = TaskRunning
	p.mu.Unlock()

	start := time.Now()
	var result any
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		p.mu.Lock()
		q.info.Attempts = attempt
		p.mu.Unlock()

		result, err = p.attempt(q.job)
		if err == nil || !IsRetryable(err) {
			break
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		taskRetries.WithLabelValues(queue).Inc()
		p.log.Warn().
			Str("task_id", q.info.ID).
			Str("kind", q.info.Kind).
			Int("attempt", attempt).
			Err(err).
			Msg("task failed, will retry")

		select {
		case <-time.After(time.Duration(attempt) * p.cfg.RetryBackoff):
		case <-p.baseCtx.Done():
			p.setOutcome(q.info, TaskFailed, nil, p.baseCtx.Err())
			return
		}
	}

	taskDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
	if err != nil {
		p.log.Error().
			Str("task_id", q.info.ID).
			Str("kind", q.info.Kind).
			Int("attempts", q.info.Attempts).
			Err(err).
			Msg("task failed")
		p.setOutcome(q.info, TaskFailed, result, err)
		return
	}
	p.setOutcome(q.info, TaskSucceeded, result, nil)
}

func (p *Pool) attempt(job Job) (any, error) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.cfg.TaskTimeout)
	defer cancel()
	return job(ctx)
}

// setOutcome records a terminal status and evicts the oldest finished
// records past the retention cap.
func (p *Pool) setOutcome(info *TaskInfo, status string, result any, err error) {
	tasksTotal.WithLabelValues(info.Queue, status).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	info.Status = status
	info.Result = result
	info.FinishedAt = time.Now().UTC()
	if err != nil {
		info.Error = err.Error()
	}
	p.finished = append(p.finished, info.ID)
	for len(p.finished) > p.cfg.RetainTasks {
		delete(p.tasks, p.finished[0])
		p.finished = p.finished[1:]
	}
}
