// Package pipeline orchestrates one contract analysis run: fingerprint,
// dedup check, text extraction, chunking and embedding, reasoning, and
// result persistence, with a durable checkpoint after every completed stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/chunker"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/embedder"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/extractor"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/hasher"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/idempotency"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/reasoner"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// Progress milestones per stage. Extraction interpolates between its bounds
// as the strategy reports fractional progress.
const (
	progressHashed        = 5
	progressExtractStart  = 10
	progressExtractDone   = 40
	progressEmbeddingDone = 60
	progressReasoningDone = 90
)

// Default per-stage deadlines for the two external calls.
const (
	DefaultOCRTimeout       = 5 * time.Minute
	DefaultReasoningTimeout = 3 * time.Minute
)

// Options tune per-stage behavior.
type Options struct {
	OCRTimeout       time.Duration
	ReasoningTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.OCRTimeout <= 0 {
		o.OCRTimeout = DefaultOCRTimeout
	}
	if o.ReasoningTimeout <= 0 {
		o.ReasoningTimeout = DefaultReasoningTimeout
	}
	return o
}

// Fingerprinter computes the idempotency key for an input file.
type Fingerprinter interface {
	HashFile(path string) (string, error)
}

// Pipeline runs the analysis stages for claimed jobs. It owns checkpointing,
// progress reporting, and result persistence; delivery, retry, and
// dead-lettering stay with the queue.
type Pipeline struct {
	hasher    Fingerprinter
	guard     *idempotency.Guard
	extractor *extractor.TextExtractor
	chunker   *chunker.Chunker
	embedder  embedder.Embedder
	reasoner  reasoner.ReasoningClient
	store     storage.Storage
	logger    *slog.Logger
	opts      Options
}

// New wires a pipeline from its stage implementations. A nil fingerprinter
// falls back to the streaming SHA-256 hasher.
func New(
	fp Fingerprinter,
	guard *idempotency.Guard,
	ext *extractor.TextExtractor,
	chk *chunker.Chunker,
	emb embedder.Embedder,
	rsn reasoner.ReasoningClient,
	store storage.Storage,
	logger *slog.Logger,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if fp == nil {
		fp = hasher.New()
	}
	return &Pipeline{
		hasher:    fp,
		guard:     guard,
		extractor: ext,
		chunker:   chk,
		embedder:  emb,
		reasoner:  rsn,
		store:     store,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// Run executes every stage for the job. A nil return means the analysis
// result is persisted; any error fails the current delivery and is handled
// by queue-level retry. Checkpoint writes are fail-closed: if a stage's
// checkpoint cannot be persisted the stage does not count as completed.
func (p *Pipeline) Run(ctx context.Context, job *types.Job) error {
	log := p.logger.With(
		"job_id", job.ID,
		"contract_id", job.Payload.ContractID,
		"attempt", job.Attempts,
	)

	fingerprint, err := p.hasher.HashFile(job.Payload.FilePath)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", job.Payload.FilePath, err)
	}
	p.progress(ctx, log, job.ID, progressHashed)

	if hit, summary := p.guard.Check(ctx, fingerprint); hit {
		return p.completeSkipped(ctx, log, job, fingerprint, summary)
	}

	if err := p.checkpoint(ctx, job.Payload.ContractID, types.StepHashChecked,
		&types.HashCheckedData{Fingerprint: fingerprint}); err != nil {
		return err
	}

	text, strategy, err := p.extract(ctx, log, job)
	if err != nil {
		return err
	}
	if err := p.checkpoint(ctx, job.Payload.ContractID, types.StepOCRCompleted,
		&types.OCRCompletedData{TextLength: len(text), Strategy: strategy}); err != nil {
		return err
	}
	p.progress(ctx, log, job.ID, progressExtractDone)
	log.Info("text extracted", "strategy", strategy, "length", len(text))

	segments := p.chunker.Chunk(text)
	embeddings, err := p.embedder.Embed(ctx, segments)
	if err != nil {
		return fmt.Errorf("embed %d segments: %w", len(segments), err)
	}
	if err := p.checkpoint(ctx, job.Payload.ContractID, types.StepEmbeddingsGenerated,
		&types.EmbeddingsData{SegmentCount: len(segments), Dimension: p.embedder.Dimension()}); err != nil {
		return err
	}
	p.progress(ctx, log, job.ID, progressEmbeddingDone)
	log.Info("embeddings generated", "segments", len(segments), "dimension", p.embedder.Dimension())

	reasonCtx, cancel := context.WithTimeout(ctx, p.opts.ReasoningTimeout)
	output, err := p.reasoner.Analyze(reasonCtx, reasoner.Request{
		ContractID: job.Payload.ContractID,
		Text:       text,
		Segments:   segments,
		Embeddings: embeddings,
	})
	cancel()
	if err != nil {
		return err
	}
	if err := p.checkpoint(ctx, job.Payload.ContractID, types.StepAgentAnalysisCompleted,
		&types.AgentAnalysisData{
			ClauseCount:  output.ClauseCount,
			TopRiskLevel: string(output.TopRiskLevel),
		}); err != nil {
		return err
	}
	p.progress(ctx, log, job.ID, progressReasoningDone)
	log.Info("analysis completed", "clauses", output.ClauseCount, "top_risk", output.TopRiskLevel)

	summary := output.Summarize()
	result := &types.AnalysisResult{
		ContractID:  job.Payload.ContractID,
		Fingerprint: fingerprint,
		Text:        text,
		Segments:    segments,
		Embeddings:  embeddings,
		Reasoning:   output,
		Summary:     summary,
	}
	if err := p.store.SaveResult(ctx, job.ID, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	// A lost marker only costs a duplicate analysis later.
	if err := p.guard.MarkProcessed(ctx, fingerprint, summary); err != nil {
		log.Warn("processed marker write failed", "fingerprint", fingerprint, "error", err)
	}

	return p.checkpoint(ctx, job.Payload.ContractID, types.StepCompleted,
		&types.CompletedData{ResultSummary: summary})
}

// extract runs the strategy chain under the OCR deadline, mapping the
// strategies' fractional progress into this stage's progress band.
func (p *Pipeline) extract(ctx context.Context, log *slog.Logger, job *types.Job) (string, string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, p.opts.OCRTimeout)
	defer cancel()

	p.progress(ctx, log, job.ID, progressExtractStart)
	span := float64(progressExtractDone - progressExtractStart)

	res, err := p.extractor.Extract(extractCtx, job.Payload.FilePath, func(percent float64) {
		p.progress(ctx, log, job.ID, progressExtractStart+int(percent/100*span))
	})
	if err != nil {
		return "", "", fmt.Errorf("extract %s: %w", job.Payload.FilePath, err)
	}
	return res.Text, res.Strategy, nil
}

// completeSkipped records the dedup fast path: a single hash_checked
// checkpoint marked skipped plus a skipped result echoing the prior summary.
func (p *Pipeline) completeSkipped(ctx context.Context, log *slog.Logger, job *types.Job, fingerprint, summary string) error {
	if err := p.checkpoint(ctx, job.Payload.ContractID, types.StepHashChecked,
		&types.HashCheckedData{Fingerprint: fingerprint, Skipped: true}); err != nil {
		return err
	}
	result := &types.AnalysisResult{
		ContractID:  job.Payload.ContractID,
		Fingerprint: fingerprint,
		Skipped:     true,
		Summary:     summary,
	}
	if err := p.store.SaveResult(ctx, job.ID, result); err != nil {
		return fmt.Errorf("save skipped result: %w", err)
	}
	log.Info("duplicate content, skipping analysis", "fingerprint", fingerprint)
	return nil
}

func (p *Pipeline) checkpoint(ctx context.Context, contractID string, step types.CheckpointStep, payload any) error {
	data, err := types.DataForStep(step, payload)
	if err != nil {
		return err
	}
	if err := p.store.AppendCheckpoint(ctx, &types.Checkpoint{
		ContractID: contractID,
		Step:       step,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("persist %s checkpoint: %w", step, err)
	}
	return nil
}

// progress reports best-effort: the storage layer keeps it monotonic and a
// failed update never fails the run.
func (p *Pipeline) progress(ctx context.Context, log *slog.Logger, jobID string, percent int) {
	if err := p.store.UpdateJobProgress(ctx, jobID, percent); err != nil {
		log.Warn("progress update failed", "percent", percent, "error", err)
	}
}
