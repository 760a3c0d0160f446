package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/chunker"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/embedder"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/extractor"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/idempotency"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/reasoner"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

const sampleContract = `SERVICE AGREEMENT

The Contractor shall indemnify and hold harmless the Client against all
claims arising from unlimited liability under this agreement.

Either party may terminate this agreement with thirty days written notice.

The Client agrees to pay a penalty fee for late payment of invoices.

All confidential information must remain proprietary and is subject to
non-disclosure obligations.
`

// countingReasoner wraps a client and counts calls.
type countingReasoner struct {
	inner reasoner.ReasoningClient
	calls int
}

func (c *countingReasoner) Analyze(ctx context.Context, req reasoner.Request) (*types.ReasoningOutput, error) {
	c.calls++
	return c.inner.Analyze(ctx, req)
}

type failingReasoner struct{}

func (failingReasoner) Analyze(context.Context, reasoner.Request) (*types.ReasoningOutput, error) {
	return nil, errors.New("model overloaded")
}

// flakyStore makes AppendCheckpoint fail after allowed writes, or exactly
// once on write number failOn when that is set.
type flakyStore struct {
	storage.Storage
	allowed int
	failOn  int
	writes  int
}

func (f *flakyStore) AppendCheckpoint(ctx context.Context, cp *types.Checkpoint) error {
	f.writes++
	if f.failOn > 0 {
		if f.writes == f.failOn {
			return errors.New("checkpoint store down")
		}
	} else if f.writes > f.allowed {
		return errors.New("checkpoint store down")
	}
	return f.Storage.AppendCheckpoint(ctx, cp)
}

type fixture struct {
	store    storage.Storage
	pipeline *Pipeline
	reasoner *countingReasoner
}

func newFixture(t *testing.T, store storage.Storage, client reasoner.ReasoningClient) *fixture {
	t.Helper()
	if store == nil {
		s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pipeline.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		store = s
	}
	if client == nil {
		client = reasoner.NewLocalAnalyzer()
	}
	counting := &countingReasoner{inner: client}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(
		nil,
		idempotency.NewGuard(store, time.Hour, logger),
		extractor.Default(extractor.NewStubEngine()),
		chunker.New(50),
		embedder.NewStubProvider(8, embedder.NewCache(100)),
		counting,
		store,
		logger,
		Options{},
	)
	return &fixture{store: store, pipeline: p, reasoner: counting}
}

func writeContract(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// startJob persists and claims a job so it looks exactly like a worker
// delivery.
func startJob(t *testing.T, store storage.Storage, filePath, contractID string) *types.Job {
	t.Helper()
	ctx := context.Background()
	job := &types.Job{
		ID: uuid.NewString(),
		Payload: types.JobPayload{
			FilePath:   filePath,
			ContractID: contractID,
			UserID:     "u-1",
		},
		MaxAttempts: 3,
	}
	require.NoError(t, store.CreateJob(ctx, job))
	claimed, err := store.ClaimNextJob(ctx, time.Now())
	require.NoError(t, err)
	return claimed
}

func TestRunFullCheckpointSequence(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	path := writeContract(t, sampleContract)
	job := startJob(t, f.store, path, "c-full")

	require.NoError(t, f.pipeline.Run(ctx, job))

	cps, err := f.store.ListCheckpoints(ctx, "c-full")
	require.NoError(t, err)
	require.Len(t, cps, len(types.StepSequence))
	for i, cp := range cps {
		assert.Equal(t, types.StepSequence[i], cp.Step)
	}

	require.NotNil(t, cps[0].Data.HashChecked)
	assert.False(t, cps[0].Data.HashChecked.Skipped)
	require.NotNil(t, cps[1].Data.OCRCompleted)
	assert.Equal(t, len(sampleContract), cps[1].Data.OCRCompleted.TextLength)
	require.NotNil(t, cps[2].Data.Embeddings)
	assert.Equal(t, 8, cps[2].Data.Embeddings.Dimension)
	assert.Positive(t, cps[2].Data.Embeddings.SegmentCount)
	require.NotNil(t, cps[3].Data.AgentAnalysis)
	assert.Positive(t, cps[3].Data.AgentAnalysis.ClauseCount)
	require.NotNil(t, cps[4].Data.Completed)

	result, err := f.store.GetResultByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, sampleContract, result.Text)
	require.NotNil(t, result.Reasoning)
	assert.Equal(t, result.Reasoning.Summarize(), result.Summary)
	assert.Len(t, result.Embeddings, len(result.Segments))

	updated, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, progressReasoningDone, updated.Progress)
	assert.Equal(t, 1, f.reasoner.calls)
}

func TestRunSkipsDuplicateContent(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	path := writeContract(t, sampleContract)

	first := startJob(t, f.store, path, "c-first")
	require.NoError(t, f.pipeline.Run(ctx, first))
	require.Equal(t, 1, f.reasoner.calls)

	// Same bytes under a different name and contract.
	dup := filepath.Join(t.TempDir(), "renamed.txt")
	require.NoError(t, os.WriteFile(dup, []byte(sampleContract), 0o644))
	second := startJob(t, f.store, dup, "c-second")
	require.NoError(t, f.pipeline.Run(ctx, second))

	assert.Equal(t, 1, f.reasoner.calls, "duplicate content must not reach reasoning")

	cps, err := f.store.ListCheckpoints(ctx, "c-second")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, types.StepHashChecked, cps[0].Step)
	require.NotNil(t, cps[0].Data.HashChecked)
	assert.True(t, cps[0].Data.HashChecked.Skipped)

	result, err := f.store.GetResultByJob(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.Summary)
	assert.Empty(t, result.Text)
}

func TestRunFailsWhenNothingExtractable(t *testing.T) {
	f := newFixture(t, nil, nil)
	// No text layer and no printable runs for recognition to find.
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00}, 0o644))
	job := startJob(t, f.store, path, "c-bin")

	err := f.pipeline.Run(context.Background(), job)
	assert.ErrorIs(t, err, types.ErrEmptyExtraction)
	assert.Zero(t, f.reasoner.calls)
}

func TestRunSurfacesReasoningExhaustion(t *testing.T) {
	client := reasoner.NewRetrying(failingReasoner{}, retry.Config{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
	})
	f := newFixture(t, nil, client)
	path := writeContract(t, sampleContract)
	job := startJob(t, f.store, path, "c-flaky")

	err := f.pipeline.Run(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Contains(t, err.Error(), "model overloaded")

	// The run stopped before the analysis checkpoint.
	cps, listErr := f.store.ListCheckpoints(context.Background(), "c-flaky")
	require.NoError(t, listErr)
	require.Len(t, cps, 3)
	assert.Equal(t, types.StepEmbeddingsGenerated, cps[2].Step)
}

func TestRunFailsClosedOnCheckpointError(t *testing.T) {
	real, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = real.Close() })

	flaky := &flakyStore{Storage: real, allowed: 1}
	f := newFixture(t, flaky, nil)
	path := writeContract(t, sampleContract)
	job := startJob(t, f.store, path, "c-flaky-store")

	runErr := f.pipeline.Run(context.Background(), job)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "checkpoint")
	assert.Zero(t, f.reasoner.calls, "stages after a failed checkpoint must not run")
}

func TestRedeliveryCompletesAfterLateCheckpointFailure(t *testing.T) {
	real, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = real.Close() })

	// The fifth checkpoint write is the completed step, so the first delivery
	// persists its result and processed marker and then fails.
	flaky := &flakyStore{Storage: real, failOn: 5}
	f := newFixture(t, flaky, nil)
	ctx := context.Background()
	path := writeContract(t, sampleContract)
	job := startJob(t, f.store, path, "c-redeliver")

	runErr := f.pipeline.Run(ctx, job)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "checkpoint")

	require.NoError(t, real.RequeueJob(ctx, job.ID, runErr.Error(), time.Now()))
	redelivered, err := real.ClaimNextJob(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, job.ID, redelivered.ID)
	require.Equal(t, 2, redelivered.Attempts)

	// The redelivery hits the dedup fast path and must be able to overwrite
	// the result the failed delivery left behind.
	require.NoError(t, f.pipeline.Run(ctx, redelivered))

	result, err := real.GetResultByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.Summary)
}

type failingFingerprinter struct{ err error }

func (f failingFingerprinter) HashFile(string) (string, error) { return "", f.err }

func TestRunSurfacesFingerprintError(t *testing.T) {
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hashErr := errors.New("file vanished")
	p := New(
		failingFingerprinter{err: hashErr},
		idempotency.NewGuard(s, time.Hour, logger),
		extractor.Default(extractor.NewStubEngine()),
		chunker.New(50),
		embedder.NewStubProvider(8, embedder.NewCache(100)),
		reasoner.NewLocalAnalyzer(),
		s,
		logger,
		Options{},
	)
	job := startJob(t, s, "/uploads/contract.pdf", "c-hash-err")

	runErr := p.Run(context.Background(), job)
	assert.ErrorIs(t, runErr, hashErr)

	cps, err := s.ListCheckpoints(context.Background(), "c-hash-err")
	require.NoError(t, err)
	assert.Empty(t, cps, "no stage completed, no checkpoints written")
}
