// Package extractor produces raw text from uploaded contract files.
//
// Extraction is an ordered list of strategies tried in turn, the first
// non-empty result winning: a structured strategy reads an embedded text
// layer directly, and an optical-recognition fallback recovers text from
// formats without one. This keeps file-format special cases out of the
// pipeline's control flow.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// Strategy errors
var (
	// ErrNoTextLayer signals that a strategy cannot handle the file's
	// format; the extractor moves on to the next strategy.
	ErrNoTextLayer = errors.New("no structured text layer")
)

// ProgressFunc receives fractional extraction progress in [0, 100].
type ProgressFunc func(percent float64)

// Strategy is one way of turning a file into text. Strategies report
// progress through onProgress and must leave no resources acquired on any
// exit path.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, path string, onProgress ProgressFunc) (string, error)
}

// TextExtractor tries each strategy in order until one yields non-empty text.
type TextExtractor struct {
	strategies []Strategy
}

// New creates a TextExtractor from an ordered strategy list.
func New(strategies ...Strategy) *TextExtractor {
	return &TextExtractor{strategies: strategies}
}

// Default returns the production chain: structured text layer first, then
// optical recognition with the given engine.
func Default(engine Engine) *TextExtractor {
	return New(NewStructured(), NewOCR(engine))
}

// Result carries the extracted text and the name of the strategy that won.
type Result struct {
	Text     string
	Strategy string
}

// Extract runs the strategy chain. Strategies that return ErrNoTextLayer or
// empty/whitespace-only text are skipped; if none succeed the error is fatal
// for this job attempt.
func (e *TextExtractor) Extract(ctx context.Context, path string, onProgress ProgressFunc) (Result, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	var attemptErrs []string
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		text, err := s.Extract(ctx, path, onProgress)
		if err != nil {
			if errors.Is(err, ErrNoTextLayer) {
				continue
			}
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		onProgress(100)
		return Result{Text: text, Strategy: s.Name()}, nil
	}

	if len(attemptErrs) > 0 {
		return Result{}, fmt.Errorf("%w (%s)", types.ErrEmptyExtraction, strings.Join(attemptErrs, "; "))
	}
	return Result{}, types.ErrEmptyExtraction
}
