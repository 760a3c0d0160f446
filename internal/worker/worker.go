// Package worker runs the polling worker pool that drains the job queue
// through the analysis pipeline.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/queue"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// Defaults for the pool.
const (
	DefaultConcurrency  = 5
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultStaleAfter is how long an active job may go without a progress
	// update before it is treated as orphaned by a crashed worker. Progress
	// writes at every stage boundary act as the heartbeat, so this only needs
	// to exceed the longest single stage.
	DefaultStaleAfter = 15 * time.Minute
)

// Runner processes one claimed job. A nil return marks the delivery
// succeeded; any error fails it and defers to queue-level retry.
type Runner interface {
	Run(ctx context.Context, job *types.Job) error
}

// Pool claims jobs concurrently and hands them to the runner. Each worker
// polls independently; an idle queue costs one cheap read per worker per
// poll interval.
type Pool struct {
	queue        *queue.JobQueue
	runner       Runner
	concurrency  int
	pollInterval time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
}

// Option customizes a Pool.
type Option func(*Pool)

// WithConcurrency sets the number of concurrent workers.
func WithConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps between claims.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithStaleAfter sets the threshold after which an active job with no
// progress updates is reclaimed from its (presumed dead) worker.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// NewPool creates a worker pool over the queue and runner.
func NewPool(q *queue.JobQueue, runner Runner, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		queue:        q,
		runner:       runner,
		concurrency:  DefaultConcurrency,
		pollInterval: DefaultPollInterval,
		staleAfter:   DefaultStaleAfter,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the pool until ctx is canceled. In-flight jobs finish their
// current delivery before Start returns; nothing new is claimed after
// cancellation. Jobs orphaned by a previous crashed pool are recovered on
// startup and then periodically.
func (p *Pool) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	p.logger.Info("worker pool starting",
		"concurrency", p.concurrency,
		"poll_interval", p.pollInterval,
		"stale_after", p.staleAfter)

	p.reap(ctx)
	g.Go(func() error {
		return p.reapLoop(ctx)
	})

	for i := 0; i < p.concurrency; i++ {
		worker := i
		g.Go(func() error {
			return p.loop(ctx, worker)
		})
	}

	err := g.Wait()
	p.logger.Info("worker pool stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reapLoop periodically returns orphaned active jobs to the queue.
func (p *Pool) reapLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.staleAfter)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.reap(ctx)
		}
	}
}

func (p *Pool) reap(ctx context.Context) {
	n, err := p.queue.ReapStale(ctx, p.staleAfter)
	if err != nil {
		p.logger.Error("stale job recovery failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.Warn("recovered stale jobs", "count", n, "stale_after", p.staleAfter)
	}
}

func (p *Pool) loop(ctx context.Context, worker int) error {
	log := p.logger.With("worker", worker)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := p.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				log.Error("claim failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.process(ctx, log, job)
	}
}

// process runs one delivery. The job's fate is decided here: complete on
// success, requeue or dead-letter on failure. The delivery is detached from
// pool cancellation so a graceful shutdown never aborts an in-flight job or
// charges it a failed attempt; per-stage deadlines bound the delivery
// instead.
func (p *Pool) process(ctx context.Context, log *slog.Logger, job *types.Job) {
	jobLog := log.With(
		"job_id", job.ID,
		"contract_id", job.Payload.ContractID,
		"attempt", job.Attempts,
	)
	jobLog.Info("processing job")
	start := time.Now()
	runCtx := context.WithoutCancel(ctx)

	if err := p.runner.Run(runCtx, job); err != nil {
		jobLog.Warn("job attempt failed", "elapsed", time.Since(start), "error", err)
		if failErr := p.queue.Fail(runCtx, job, err); failErr != nil {
			jobLog.Error("recording job failure failed", "error", failErr)
		}
		return
	}

	if err := p.queue.Complete(runCtx, job.ID); err != nil {
		jobLog.Error("marking job completed failed", "error", err)
		return
	}
	jobLog.Info("job completed", "elapsed", time.Since(start))
}
