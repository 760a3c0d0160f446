// Package embedder maps text segments to fixed-dimension vectors.
//
// Embedding is a capability boundary: the production provider calls an
// external embedding API, while the stub provider generates deterministic
// vectors of the correct shape for development and tests. Callers must not
// depend on vector values, only on shape and ordering: one vector per
// segment, in input order.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrNoSegments      = errors.New("no segments provided")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Embedder generates one fixed-dimension vector per input segment.
type Embedder interface {
	// Embed returns vectors in the same order as segments.
	Embed(ctx context.Context, segments []string) ([][]float32, error)

	// Dimension returns the vector dimension this provider produces.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides in-memory LRU caching of vectors by segment content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which is handled above.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector so caller mutations cannot pollute
// the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector, evicting the least recently used entry at capacity.
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 hash of a segment for cache keys.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateSegments rejects empty batches. Empty-string segments are allowed:
// the chunker emits a single empty segment for empty documents.
func validateSegments(segments []string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w", ErrNoSegments)
	}
	return nil
}
