package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"

	// DefaultOpenAIModel matches the model the analysis service was built
	// against; its vectors are 1536-dimensional.
	DefaultOpenAIModel = "text-embedding-3-small"

	OpenAIDimension = 1536
	StubDimension   = 1536

	// EnvOpenAIAPIKey names the environment variable holding the API key.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	openAIEndpoint = "https://api.openai.com/v1/embeddings"

	// MaxBatchSize bounds a single API call; larger segment lists are sent
	// in multiple calls.
	MaxBatchSize = 100
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	cache      *Cache
	retryCfg   retry.Config
}

// NewOpenAIProvider creates an OpenAI-backed embedder. An empty apiKey falls
// back to the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrProviderFailed, EnvOpenAIAPIKey)
	}

	return &OpenAIProvider{
		apiKey:   apiKey,
		model:    DefaultOpenAIModel,
		endpoint: openAIEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:    cache,
		retryCfg: retry.DefaultConfig(),
	}, nil
}

// Embed generates one vector per segment, serving cache hits locally and
// batching the remainder through the API with retry and backoff.
func (o *OpenAIProvider) Embed(ctx context.Context, segments []string) ([][]float32, error) {
	if err := validateSegments(segments); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(segments))
	var missing []int

	for i, seg := range segments {
		if o.cache != nil {
			if v, ok := o.cache.Get(ComputeHash(seg)); ok {
				vectors[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = segments[idx]
		}

		got, err := retry.Do(ctx, o.retryCfg, func() ([][]float32, error) {
			return o.callAPI(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d segments", ErrProviderFailed, len(got), len(batch))
		}

		for j, idx := range batch {
			vectors[idx] = got[j]
			if o.cache != nil {
				o.cache.Set(ComputeHash(segments[idx]), got[j])
			}
		}
	}

	return vectors, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": o.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("api returned %d embeddings for %d inputs", len(apiResp.Data), len(texts))
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("api returned out-of-range index %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// StubProvider generates deterministic vectors of the correct shape without
// any external calls. It stands in for a real embedding model during
// development; callers must treat the values as meaningless.
type StubProvider struct {
	dimension int
	cache     *Cache
}

// NewStubProvider creates a stub embedder. A non-positive dimension falls
// back to StubDimension.
func NewStubProvider(dimension int, cache *Cache) *StubProvider {
	if dimension <= 0 {
		dimension = StubDimension
	}
	return &StubProvider{dimension: dimension, cache: cache}
}

// Embed derives each vector from the segment's SHA-256 so the same segment
// always maps to the same vector.
func (s *StubProvider) Embed(ctx context.Context, segments []string) ([][]float32, error) {
	if err := validateSegments(segments); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hash := ComputeHash(seg)
		if s.cache != nil {
			if v, ok := s.cache.Get(hash); ok {
				vectors[i] = v
				continue
			}
		}

		vectors[i] = s.deriveVector(seg)
		if s.cache != nil {
			s.cache.Set(hash, vectors[i])
		}
	}
	return vectors, nil
}

// deriveVector expands the segment hash into dimension values in [0, 1).
func (s *StubProvider) deriveVector(segment string) []float32 {
	vector := make([]float32, s.dimension)
	seed := sha256.Sum256([]byte(segment))

	block := seed
	for i := 0; i < s.dimension; i++ {
		word := i % 8
		if i > 0 && word == 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[word*4 : word*4+4])
		vector[i] = float32(bits) / float32(^uint32(0))
	}
	return vector
}

func (s *StubProvider) Dimension() int {
	return s.dimension
}

func (s *StubProvider) Provider() string {
	return ProviderStub
}

func (s *StubProvider) Close() error {
	return nil
}
