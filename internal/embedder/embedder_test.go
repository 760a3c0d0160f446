package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubShapeAndOrder(t *testing.T) {
	s := NewStubProvider(1536, nil)
	segments := []string{"liability clause", "payment terms", "termination"}

	vectors, err := s.Embed(context.Background(), segments)
	require.NoError(t, err)
	require.Len(t, vectors, len(segments))

	for i, v := range vectors {
		assert.Len(t, v, 1536, "vector %d", i)
	}

	// Same segment text in a different position yields the same vector.
	again, err := s.Embed(context.Background(), []string{"termination"})
	require.NoError(t, err)
	assert.Equal(t, vectors[2], again[0])
}

func TestStubDeterministic(t *testing.T) {
	s := NewStubProvider(64, nil)
	a, err := s.Embed(context.Background(), []string{"indemnify"})
	require.NoError(t, err)
	b, err := s.Embed(context.Background(), []string{"indemnify"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStubDistinctSegmentsDiffer(t *testing.T) {
	s := NewStubProvider(128, nil)
	vectors, err := s.Embed(context.Background(), []string{"clause a", "clause b"})
	require.NoError(t, err)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestStubEmptySegmentAllowed(t *testing.T) {
	// The chunker emits [""] for empty documents; the embedder must still
	// produce a correctly shaped vector for it.
	s := NewStubProvider(32, nil)
	vectors, err := s.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 32)
}

func TestEmbedRejectsEmptyBatch(t *testing.T) {
	s := NewStubProvider(32, nil)
	_, err := s.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(10)
	h := ComputeHash("segment")

	_, ok := c.Get(h)
	assert.False(t, ok)

	c.Set(h, []float32{1, 2, 3})
	v, ok := c.Get(h)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)

	// Mutating the returned slice must not pollute the cache.
	v[0] = 99
	v2, _ := c.Get(h)
	assert.Equal(t, float32(1), v2[0])
}

func TestNewFactory(t *testing.T) {
	emb, err := New(Config{Provider: "stub", Dimension: 16})
	require.NoError(t, err)
	assert.Equal(t, ProviderStub, emb.Provider())
	assert.Equal(t, 16, emb.Dimension())

	_, err = New(Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOpenAIProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data  []datum `json:"data"`
			Model string  `json:"model"`
		}{Model: req.Model}

		for i := range req.Input {
			resp.Data = append(resp.Data, datum{
				Embedding: []float32{float32(i), float32(i) + 0.5},
				Index:     i,
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", NewCache(10))
	require.NoError(t, err)
	p.endpoint = srv.URL

	vectors, err := p.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0.5}, vectors[0])
	assert.Equal(t, []float32{1, 1.5}, vectors[1])

	// Second call is served from cache even if the server goes away.
	srv.Close()
	cached, err := p.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, vectors, cached)
}
