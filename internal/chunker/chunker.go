// Package chunker splits extracted contract text into ordered segments for
// the embedding stage.
//
// Chunking is pure and deterministic: the text is split on whitespace into
// tokens, then grouped into windows of at most WindowSize tokens each,
// preserving the original order with no overlap between windows. N tokens
// chunked at window W always produce ceil(N/W) segments.
package chunker

import (
	"strings"
)

// DefaultWindowSize is the default number of whitespace-separated tokens per
// segment.
const DefaultWindowSize = 500

// Chunker groups tokens into fixed-size windows.
type Chunker struct {
	windowSize int
}

// New creates a Chunker. A non-positive windowSize falls back to
// DefaultWindowSize.
func New(windowSize int) *Chunker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Chunker{windowSize: windowSize}
}

// WindowSize returns the configured tokens-per-segment limit.
func (c *Chunker) WindowSize() int {
	return c.windowSize
}

// Chunk splits text into ordered segments of at most WindowSize tokens.
// Empty input returns a single empty-string segment; downstream stages rely
// on every contract producing at least one segment.
func (c *Chunker) Chunk(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return []string{""}
	}

	segments := make([]string, 0, (len(tokens)+c.windowSize-1)/c.windowSize)
	for start := 0; start < len(tokens); start += c.windowSize {
		end := start + c.windowSize
		if end > len(tokens) {
			end = len(tokens)
		}
		segments = append(segments, strings.Join(tokens[start:end], " "))
	}
	return segments
}
