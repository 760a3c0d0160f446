// Package reasoner invokes the multi-step contract analysis: clause
// extraction and risk scoring over the extracted text, segments, and
// embeddings.
//
// The ReasoningClient is a capability boundary. HTTPClient calls the
// external analysis service; LocalAnalyzer is a self-contained heuristic
// implementation for development and tests. RetryingReasoner wraps any
// client with bounded retry and exponential backoff, since this is the
// single most failure-prone stage in the pipeline.
package reasoner

import (
	"context"
	"errors"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// ErrAnalysisFailed wraps failures of the underlying analysis service.
var ErrAnalysisFailed = errors.New("analysis service failed")

// Request carries the inputs of the reasoning stage.
type Request struct {
	ContractID string
	Text       string
	Segments   []string
	Embeddings [][]float32
}

// ReasoningClient performs one analysis call.
type ReasoningClient interface {
	Analyze(ctx context.Context, req Request) (*types.ReasoningOutput, error)
}
