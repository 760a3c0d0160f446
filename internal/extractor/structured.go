package extractor

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

// StructuredStrategy reads files that carry their text directly (plain text,
// markdown, exported document text). Extraction completes in one step, so
// the caller sees progress jump straight to 100%.
type StructuredStrategy struct{}

// NewStructured creates the structured text-layer strategy.
func NewStructured() *StructuredStrategy {
	return &StructuredStrategy{}
}

func (s *StructuredStrategy) Name() string {
	return "structured"
}

func (s *StructuredStrategy) Extract(ctx context.Context, path string, onProgress ProgressFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	if !looksLikeText(data) {
		return "", ErrNoTextLayer
	}

	// No incremental work to report; the extractor signals 100% once the
	// result is accepted as non-empty.
	return string(data), nil
}

// looksLikeText distinguishes an embedded text layer from binary content:
// valid UTF-8 with no NUL bytes.
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if !utf8.Valid(data) {
		return false
	}
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return true
}
