// Package status composes the caller-facing view of a job: queue state,
// progress, checkpoint history, and the final result once one exists.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// Reader answers job status queries from the storage layer.
type Reader struct {
	store storage.Storage
}

// NewReader creates a Reader.
func NewReader(store storage.Storage) *Reader {
	return &Reader{store: store}
}

// Get returns the live status of a job. Unknown ids return
// types.ErrJobNotFound. The checkpoint history is returned in creation
// order; the result is attached only for completed jobs.
func (r *Reader) Get(ctx context.Context, jobID string) (*types.JobStatus, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	checkpoints, err := r.store.ListCheckpoints(ctx, job.Payload.ContractID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints for %s: %w", job.Payload.ContractID, err)
	}

	status := &types.JobStatus{
		JobID:       job.ID,
		State:       job.State,
		Progress:    job.Progress,
		Checkpoints: checkpoints,
	}

	if job.State == types.StateCompleted {
		result, err := r.store.GetResultByJob(ctx, jobID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load result for %s: %w", jobID, err)
		}
		status.Result = result
	}
	return status, nil
}
