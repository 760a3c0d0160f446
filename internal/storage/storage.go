// Package storage persists the pipeline's durable state: the job queue,
// per-contract checkpoints, processed markers, dead-letter entries, and
// analysis results.
//
// The implementation is SQLite behind the Storage interface; the pipeline
// only depends on a checkpoint-record store and a durable job queue, so the
// backing technology is swappable.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate record
	ErrAlreadyExists = errors.New("already exists")
)

// Storage defines the persistence operations the pipeline needs.
type Storage interface {
	// Job queue operations
	CreateJob(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, jobID string) (*types.Job, error)
	// ClaimNextJob atomically transitions the oldest due queued job to
	// active and increments its attempt count. Returns ErrNotFound when no
	// job is due.
	ClaimNextJob(ctx context.Context, now time.Time) (*types.Job, error)
	// UpdateJobProgress raises the job's progress; values below the current
	// progress are ignored so reported progress never decreases.
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
	MarkJobCompleted(ctx context.Context, jobID string) error
	// RequeueJob returns a failed attempt to the queue for redelivery at
	// scheduledAt.
	RequeueJob(ctx context.Context, jobID string, lastError string, scheduledAt time.Time) error
	// MarkJobFailed records the terminal failed state after the attempt
	// ceiling is exhausted.
	MarkJobFailed(ctx context.Context, jobID string, lastError string) error
	// ListStaleJobs returns active jobs not updated since cutoff: deliveries
	// whose worker crashed or lost connectivity mid-run.
	ListStaleJobs(ctx context.Context, cutoff time.Time) ([]types.Job, error)

	// Checkpoint operations: append-only, returned in creation order.
	AppendCheckpoint(ctx context.Context, cp *types.Checkpoint) error
	ListCheckpoints(ctx context.Context, contractID string) ([]types.Checkpoint, error)

	// Processed-marker operations, keyed by fingerprint.
	UpsertMarker(ctx context.Context, marker types.ProcessedMarker) error
	GetMarker(ctx context.Context, fingerprint string) (*types.ProcessedMarker, error)
	DeleteMarker(ctx context.Context, fingerprint string) error

	// Dead-letter operations.
	CreateDeadLetter(ctx context.Context, entry *types.DeadLetterEntry) error
	GetDeadLetter(ctx context.Context, id string) (*types.DeadLetterEntry, error)
	ListDeadLetters(ctx context.Context) ([]types.DeadLetterEntry, error)
	DeleteDeadLetter(ctx context.Context, id string) error

	// Analysis result operations.
	SaveResult(ctx context.Context, jobID string, result *types.AnalysisResult) error
	GetResultByJob(ctx context.Context, jobID string) (*types.AnalysisResult, error)

	// Close releases the underlying database.
	Close() error
}
