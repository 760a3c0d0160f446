// Package idempotency short-circuits reprocessing of content that was already
// analyzed. Documents are identified by their content fingerprint, not by
// file path, so re-uploads under new names are still deduplicated.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// DefaultTTL is how long a processed marker stays live. After expiry the same
// content is analyzed again from scratch.
const DefaultTTL = 7 * 24 * time.Hour

// MarkerStore is the slice of the storage layer the guard needs.
type MarkerStore interface {
	UpsertMarker(ctx context.Context, marker types.ProcessedMarker) error
	GetMarker(ctx context.Context, fingerprint string) (*types.ProcessedMarker, error)
	DeleteMarker(ctx context.Context, fingerprint string) error
}

// Guard answers "have we already processed this content?" and records
// completions. Lookup failures degrade to a miss: a broken marker store must
// never block analysis, only cost duplicate work.
type Guard struct {
	store  MarkerStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewGuard creates a guard with the given retention window. A non-positive
// ttl falls back to DefaultTTL.
func NewGuard(store MarkerStore, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Check reports whether a live marker exists for the fingerprint. When it
// does, the previous result summary is returned alongside. Expired markers
// are purged lazily and count as a miss.
func (g *Guard) Check(ctx context.Context, fingerprint string) (bool, string) {
	marker, err := g.store.GetMarker(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ""
		}
		// Fail open: treat a store error as a miss.
		g.logger.Warn("marker lookup failed, proceeding without dedup",
			"fingerprint", fingerprint, "error", err)
		return false, ""
	}
	if !marker.Live(g.now()) {
		if err := g.store.DeleteMarker(ctx, fingerprint); err != nil && !errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn("expired marker purge failed", "fingerprint", fingerprint, "error", err)
		}
		return false, ""
	}
	return true, marker.ResultSummary
}

// MarkProcessed records a completed analysis so later submissions of the same
// content can skip the pipeline until the marker expires.
func (g *Guard) MarkProcessed(ctx context.Context, fingerprint, resultSummary string) error {
	return g.store.UpsertMarker(ctx, types.ProcessedMarker{
		Fingerprint:   fingerprint,
		ResultSummary: resultSummary,
		Expiry:        g.now().Add(g.ttl),
	})
}
