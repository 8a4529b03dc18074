// Package writeback persists completed exchanges off the response critical
// path. Jobs run on workers detached from the caller's connection: a client
// that disconnects mid-reply never aborts an in-flight write.
package writeback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/memos"
	"github.com/elacava/principia/internal/observability"
	"github.com/elacava/principia/internal/reliability"
)

// Job is one completed exchange to persist. An empty AssistantText means
// the stream failed before producing output: the user turn is still
// recorded but no assistant turn is written and the memory service is
// skipped (it ingests exchanges as pairs).
type Job struct {
	ID             string
	Username       string
	NamespaceID    string
	ConversationID string
	UserText       string
	AssistantText  string
}

// Config bounds the queue. Zero values fall back to defaults.
type Config struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	RetryBase  time.Duration
	RetryCap   time.Duration
	OpTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 250 * time.Millisecond
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 5 * time.Second
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 10 * time.Second
	}
	return c
}

// Queue accepts jobs without blocking and runs them on a worker pool.
type Queue struct {
	cfg     Config
	jobs    chan Job
	history history.Store
	gateway memos.Gateway
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewQueue(cfg Config, historyStore history.Store, gateway memos.Gateway, logger *slog.Logger, metrics *observability.Metrics) *Queue {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueSize),
		history: historyStore,
		gateway: gateway,
		logger:  logger.With("component", "writeback"),
		metrics: metrics,
	}
}

// Submit enqueues a job. It never blocks the caller: when the queue is
// saturated the job is dropped and counted, which degrades future context
// but keeps the response path responsive.
func (q *Queue) Submit(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case q.jobs <- job:
		q.metrics.IncWritebackJob("queued")
		return true
	default:
		q.logger.Warn("writeback queue full, dropping job", "job_id", job.ID, "username", job.Username)
		q.metrics.IncWritebackJob("dropped")
		return false
	}
}

// Run blocks until ctx is canceled, processing jobs on the configured
// number of workers. The ctx should be the process lifetime, not a request.
// On cancellation every job already accepted by Submit is still processed
// before Run returns; only then do the workers stop.
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					q.drain()
					return nil
				case job := <-q.jobs:
					q.process(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

// drain empties the buffered jobs at shutdown. The run context is already
// canceled at this point, so each job gets a fresh context; the per-op
// timeout still bounds every attempt.
func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.process(context.Background(), job)
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	ok := true

	if job.UserText != "" {
		ok = q.withRetry(ctx, "history_append_user", job, func(opCtx context.Context) error {
			return q.history.Append(opCtx, job.Username, history.RoleUser, job.UserText)
		}) && ok
	}

	if job.AssistantText != "" {
		ok = q.withRetry(ctx, "history_append_assistant", job, func(opCtx context.Context) error {
			return q.history.Append(opCtx, job.Username, history.RoleAssistant, job.AssistantText)
		}) && ok

		if q.gateway != nil {
			ok = q.withRetry(ctx, "memos_write", job, func(opCtx context.Context) error {
				return q.gateway.Write(opCtx, job.NamespaceID, job.ConversationID, []memos.Message{
					{Role: history.RoleUser, Content: job.UserText},
					{Role: history.RoleAssistant, Content: job.AssistantText},
				})
			}) && ok
		}
	}

	if ok {
		q.metrics.IncWritebackJob("completed")
	}
}

func (q *Queue) withRetry(ctx context.Context, op string, job Job, fn func(context.Context) error) bool {
	var lastErr error
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, q.cfg.OpTimeout)
		lastErr = fn(opCtx)
		cancel()
		if lastErr == nil {
			return true
		}
		if attempt == q.cfg.MaxRetries {
			break
		}
		q.metrics.IncWritebackJob("retried")
		wait := reliability.ExponentialBackoff(attempt, q.cfg.RetryBase, q.cfg.RetryCap)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(wait):
		}
		if ctx.Err() != nil {
			break
		}
	}

	// Dead-letter: the job stays lost but leaves a reconstructable trace.
	q.logger.Error("writeback op exhausted retries",
		"op", op,
		"job_id", job.ID,
		"username", job.Username,
		"error", lastErr,
	)
	q.metrics.IncWritebackJob("dead_letter")
	return false
}
