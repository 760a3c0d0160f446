package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// HTTPClient calls the external analysis service's document endpoint.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the analysis service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		endpoint: baseURL + "/analyze/document",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// analyzeRequest mirrors the analysis service's request schema.
type analyzeRequest struct {
	ContractID   string      `json:"contract_id"`
	DocumentText string      `json:"document_text"`
	Segments     []string    `json:"segments"`
	Embeddings   [][]float32 `json:"embeddings"`
	AnalysisType string      `json:"analysis_type"`
}

// analyzeResponse mirrors the analysis service's response envelope.
type analyzeResponse struct {
	Success bool                   `json:"success"`
	Data    *types.ReasoningOutput `json:"data"`
	Error   string                 `json:"error,omitempty"`
}

// Analyze posts the document to the analysis service and decodes the
// structured result.
func (c *HTTPClient) Analyze(ctx context.Context, req Request) (*types.ReasoningOutput, error) {
	body, err := json.Marshal(analyzeRequest{
		ContractID:   req.ContractID,
		DocumentText: req.Text,
		Segments:     req.Segments,
		Embeddings:   req.Embeddings,
		AnalysisType: "comprehensive",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrAnalysisFailed, resp.StatusCode, string(bodyBytes))
	}

	var apiResp analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !apiResp.Success || apiResp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, apiResp.Error)
	}

	return apiResp.Data, nil
}
