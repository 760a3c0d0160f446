// Package queue implements the durable job queue backing the analysis
// pipeline: at-least-once delivery, exponential redelivery backoff, and
// dead-letter routing once the attempt budget is exhausted.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// DefaultMaxAttempts is the per-job attempt ceiling. The third failed
// delivery routes the job to the dead-letter queue.
const DefaultMaxAttempts = 3

// JobQueue coordinates job state transitions on top of the storage layer.
// Attempts are counted at claim time, so a job's Attempts field always
// reflects the delivery currently in flight.
type JobQueue struct {
	store   storage.Storage
	backoff retry.Config
	maxAtt  int
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a JobQueue.
type Option func(*JobQueue)

// WithMaxAttempts overrides the attempt ceiling applied to new jobs.
func WithMaxAttempts(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.maxAtt = n
		}
	}
}

// WithBackoff overrides the redelivery backoff policy.
func WithBackoff(cfg retry.Config) Option {
	return func(q *JobQueue) { q.backoff = cfg }
}

// New creates a queue over the given storage.
func New(store storage.Storage, logger *slog.Logger, opts ...Option) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &JobQueue{
		store:   store,
		backoff: retry.DefaultConfig(),
		maxAtt:  DefaultMaxAttempts,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue persists a new queued job for the payload and returns it. The job
// is immediately eligible for claiming.
func (q *JobQueue) Enqueue(ctx context.Context, payload types.JobPayload) (*types.Job, error) {
	job := &types.Job{
		ID:          uuid.NewString(),
		Payload:     payload,
		State:       types.StateQueued,
		MaxAttempts: q.maxAtt,
		ScheduledAt: q.now(),
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	q.logger.Info("job enqueued",
		"job_id", job.ID,
		"contract_id", payload.ContractID,
		"file", payload.FilePath)
	return job, nil
}

// Claim atomically takes the oldest due queued job, marking it active and
// charging one attempt. Returns storage.ErrNotFound when nothing is due.
func (q *JobQueue) Claim(ctx context.Context) (*types.Job, error) {
	return q.store.ClaimNextJob(ctx, q.now())
}

// Complete marks the job finished at 100% progress.
func (q *JobQueue) Complete(ctx context.Context, jobID string) error {
	return q.store.MarkJobCompleted(ctx, jobID)
}

// Progress raises the job's reported progress. Lower values are ignored by
// the storage layer, so out-of-order reports cannot move progress backwards.
func (q *JobQueue) Progress(ctx context.Context, jobID string, percent int) error {
	return q.store.UpdateJobProgress(ctx, jobID, percent)
}

// Fail records a failed delivery. Below the attempt ceiling the job is
// requeued with exponential backoff; at the ceiling it is dead-lettered and
// marked failed.
func (q *JobQueue) Fail(ctx context.Context, job *types.Job, cause error) error {
	msg := cause.Error()

	if job.Attempts < job.MaxAttempts {
		delay := retry.Backoff(q.backoff, job.Attempts-1)
		retryAt := q.now().Add(delay)
		if err := q.store.RequeueJob(ctx, job.ID, msg, retryAt); err != nil {
			return fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		q.logger.Warn("job attempt failed, requeued",
			"job_id", job.ID,
			"attempt", job.Attempts,
			"max_attempts", job.MaxAttempts,
			"retry_in", delay,
			"error", msg)
		return nil
	}

	entry := &types.DeadLetterEntry{
		ID:            uuid.NewString(),
		OriginalJobID: job.ID,
		JobData:       job.Payload,
		Error:         msg,
		FailedAt:      q.now(),
		Attempts:      job.Attempts,
	}
	if err := q.store.CreateDeadLetter(ctx, entry); err != nil {
		return fmt.Errorf("dead-letter job %s: %w", job.ID, err)
	}
	if err := q.store.MarkJobFailed(ctx, job.ID, msg); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	q.logger.Error("job exhausted attempts, dead-lettered",
		"job_id", job.ID,
		"dead_letter_id", entry.ID,
		"attempts", job.Attempts,
		"error", msg)
	return nil
}

// Retry resubmits a dead-lettered job as a fresh job with a zeroed attempt
// count, then removes the entry. The insert and delete are separate writes;
// if the delete is lost the duplicate run is absorbed by the idempotency
// fast path.
func (q *JobQueue) Retry(ctx context.Context, deadLetterID string) (*types.Job, error) {
	entry, err := q.store.GetDeadLetter(ctx, deadLetterID)
	if err != nil {
		return nil, fmt.Errorf("load dead letter %s: %w", deadLetterID, err)
	}

	job, err := q.Enqueue(ctx, entry.JobData)
	if err != nil {
		return nil, err
	}
	if err := q.store.DeleteDeadLetter(ctx, deadLetterID); err != nil {
		return nil, fmt.Errorf("remove dead letter %s: %w", deadLetterID, err)
	}

	q.logger.Info("dead-lettered job resubmitted",
		"dead_letter_id", deadLetterID,
		"original_job_id", entry.OriginalJobID,
		"new_job_id", job.ID)
	return job, nil
}

// ReapStale recovers deliveries orphaned by crashed workers: active jobs not
// updated for olderThan are treated as failed deliveries, so they requeue
// with backoff below the attempt ceiling and dead-letter at it. The attempt
// charged at claim time stays charged. Returns the number of jobs recovered.
func (q *JobQueue) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := q.now().Add(-olderThan)
	stale, err := q.store.ListStaleJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	for i := range stale {
		job := &stale[i]
		cause := fmt.Errorf("delivery stalled: no progress since %s", job.UpdatedAt.Format(time.RFC3339))
		if err := q.Fail(ctx, job, cause); err != nil {
			return i, fmt.Errorf("recover stale job %s: %w", job.ID, err)
		}
	}
	return len(stale), nil
}

// ListDeadLetters returns every dead-letter entry, newest first.
func (q *JobQueue) ListDeadLetters(ctx context.Context) ([]types.DeadLetterEntry, error) {
	return q.store.ListDeadLetters(ctx)
}
