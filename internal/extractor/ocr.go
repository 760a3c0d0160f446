package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Engine is the optical-recognition capability. Acquire hands out a Session
// scoped to one extraction; the session must be closed on every exit path.
type Engine interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is one acquired recognition engine instance.
type Session interface {
	// Recognize recovers text from one block of file bytes.
	Recognize(ctx context.Context, block []byte) (string, error)
	// Close releases the engine resources backing this session.
	Close() error
}

// ocrBlockSize is the number of bytes recognized per progress increment.
const ocrBlockSize = 32 * 1024

// OCRStrategy recovers text through a recognition engine, reporting
// fractional progress as blocks complete.
type OCRStrategy struct {
	engine Engine
}

// NewOCR creates the optical-recognition fallback strategy.
func NewOCR(engine Engine) *OCRStrategy {
	return &OCRStrategy{engine: engine}
}

func (o *OCRStrategy) Name() string {
	return "ocr"
}

// Extract acquires a recognition session, feeds the file through it block by
// block, and releases the session whether recognition succeeds, returns
// nothing, or fails.
func (o *OCRStrategy) Extract(ctx context.Context, path string, onProgress ProgressFunc) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	session, err := o.engine.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire recognition engine: %w", err)
	}
	defer func() { _ = session.Close() }()

	totalBlocks := (len(data) + ocrBlockSize - 1) / ocrBlockSize
	if totalBlocks == 0 {
		totalBlocks = 1
	}

	var sb strings.Builder
	for i := 0; i < totalBlocks; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		start := i * ocrBlockSize
		end := start + ocrBlockSize
		if end > len(data) {
			end = len(data)
		}

		text, err := session.Recognize(ctx, data[start:end])
		if err != nil {
			return "", fmt.Errorf("recognize block %d/%d: %w", i+1, totalBlocks, err)
		}
		sb.WriteString(text)

		onProgress(float64(i+1) / float64(totalBlocks) * 100)
	}

	return sb.String(), nil
}

// StubEngine is a development recognition engine that recovers printable
// character runs from raw bytes. It tracks outstanding sessions so tests can
// assert that every acquisition is released.
type StubEngine struct {
	open int
}

// NewStubEngine creates a stub recognition engine.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

// Acquire hands out a stub session.
func (e *StubEngine) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.open++
	return &stubSession{engine: e}, nil
}

// OpenSessions returns the number of sessions acquired but not yet closed.
func (e *StubEngine) OpenSessions() int {
	return e.open
}

type stubSession struct {
	engine *StubEngine
	closed bool
}

// Recognize keeps runs of at least four printable characters, separated by
// single spaces, dropping everything else.
func (s *stubSession) Recognize(ctx context.Context, block []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	const minRun = 4
	var sb strings.Builder
	var run []rune

	flush := func() {
		if len(run) >= minRun {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(string(run))
		}
		run = run[:0]
	}

	for _, b := range block {
		r := rune(b)
		if unicode.IsPrint(r) && r < unicode.MaxASCII {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	return sb.String(), nil
}

func (s *stubSession) Close() error {
	if !s.closed {
		s.closed = true
		s.engine.open--
	}
	return nil
}
