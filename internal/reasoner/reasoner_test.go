package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

const sampleContract = `Section 8.1 Liability
The Company shall have unlimited liability for any damages arising from gross negligence. Party A shall indemnify and hold harmless Party B from all claims and liquidated damages apply as penalty.

Section 12.1 Termination
Either party may terminate this agreement with 30 days written notice.

Section 4.1 Payment
Payment terms are Net 30 days from invoice date.`

func TestLocalAnalyzerExtractsClauses(t *testing.T) {
	out, err := NewLocalAnalyzer().Analyze(context.Background(), Request{
		ContractID: "c-1",
		Text:       sampleContract,
	})
	require.NoError(t, err)

	assert.Greater(t, out.ClauseCount, 0)
	assert.Len(t, out.Clauses, out.ClauseCount)
	assert.Equal(t, types.RiskHigh, out.TopRiskLevel)
	assert.Contains(t, out.Summary, "top risk HIGH")
}

func TestLocalAnalyzerClauseTypes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.ClauseType
	}{
		{
			name: "liability",
			text: "The Company shall have unlimited liability for damages arising here.",
			want: types.ClauseLiability,
		},
		{
			name: "financial",
			text: "All fees and charges are payable within thirty calendar days.",
			want: types.ClauseFinancial,
		},
		{
			name: "termination",
			text: "This arrangement may be cancelled upon expiry of the notice period.",
			want: types.ClauseTermination,
		},
		{
			name: "confidentiality",
			text: "All proprietary information shall remain secret for five years.",
			want: types.ClauseConfidentiality,
		},
		{
			name: "force majeure",
			text: "Neither side is responsible for unforeseen acts of god events.",
			want: types.ClauseForceMajeure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreClause(tt.text).Type)
		})
	}
}

func TestScoreClauseRiskTiers(t *testing.T) {
	high := scoreClause("Unlimited liability with penalty and liquidated damages; party shall indemnify.")
	assert.Equal(t, types.RiskHigh, high.RiskLevel)
	assert.GreaterOrEqual(t, high.RiskScore, 8.0)
	assert.LessOrEqual(t, high.RiskScore, 10.0)
	assert.Contains(t, high.Recommendation, "Immediate legal review")

	medium := scoreClause("We may terminate at our discretion without notice.")
	assert.Equal(t, types.RiskMedium, medium.RiskLevel)

	low := scoreClause("The parties act in good faith under standard terms by mutual agreement.")
	assert.Equal(t, types.RiskLow, low.RiskLevel)
	assert.GreaterOrEqual(t, low.RiskScore, 0.0)
}

// countingClient fails a fixed number of times before succeeding.
type countingClient struct {
	failures int
	calls    int
}

func (c *countingClient) Analyze(ctx context.Context, req Request) (*types.ReasoningOutput, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("upstream timeout")
	}
	return &types.ReasoningOutput{ClauseCount: 1, TopRiskLevel: types.RiskLow}, nil
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func TestRetryingReasonerExhaustsAttempts(t *testing.T) {
	client := &countingClient{failures: 100}
	r := NewRetrying(client, fastRetry(3))

	_, err := r.Analyze(context.Background(), Request{Text: "doc"})
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestRetryingReasonerRecoversAfterTwoFailures(t *testing.T) {
	client := &countingClient{failures: 2}
	r := NewRetrying(client, fastRetry(3))

	out, err := r.Analyze(context.Background(), Request{Text: "doc"})
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 1, out.ClauseCount)
}

func TestRetryingReasonerNoRetryOnSuccess(t *testing.T) {
	client := &countingClient{}
	r := NewRetrying(client, fastRetry(5))

	_, err := r.Analyze(context.Background(), Request{Text: "doc"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestHTTPClientAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze/document", r.URL.Path)

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "comprehensive", req.AnalysisType)

		require.NoError(t, json.NewEncoder(w).Encode(analyzeResponse{
			Success: true,
			Data: &types.ReasoningOutput{
				ClauseCount:  2,
				TopRiskLevel: types.RiskMedium,
				Summary:      "2 clauses",
			},
		}))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	out, err := c.Analyze(context.Background(), Request{ContractID: "c-9", Text: "doc"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ClauseCount)
	assert.Equal(t, types.RiskMedium, out.TopRiskLevel)
}

func TestHTTPClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(analyzeResponse{
			Success: false,
			Error:   "agent not initialized",
		}))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.Analyze(context.Background(), Request{Text: "doc"})
	require.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "agent not initialized")
}

func TestHTTPClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.Analyze(context.Background(), Request{Text: "doc"})
	require.ErrorIs(t, err, ErrAnalysisFailed)
}
