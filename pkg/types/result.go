package types

import "fmt"

// RiskLevel classifies a clause or an overall document.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank orders risk levels for comparison; higher is riskier.
func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the riskier of the two levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

// ClauseType is the coarse legal category assigned to an extracted clause.
type ClauseType string

const (
	ClauseLiability       ClauseType = "liability"
	ClauseFinancial       ClauseType = "financial"
	ClauseTermination     ClauseType = "termination"
	ClauseConfidentiality ClauseType = "confidentiality"
	ClauseIP              ClauseType = "intellectual_property"
	ClauseForceMajeure    ClauseType = "force_majeure"
	ClauseGeneral         ClauseType = "general"
)

// Clause is one extracted legal clause with its risk assessment.
type Clause struct {
	Text           string     `json:"text"`
	Type           ClauseType `json:"type"`
	RiskLevel      RiskLevel  `json:"riskLevel"`
	RiskScore      float64    `json:"riskScore"` // 0..10
	Recommendation string     `json:"recommendation"`
}

// ReasoningOutput is the structured result of the multi-step analysis call.
type ReasoningOutput struct {
	Clauses      []Clause  `json:"clauses"`
	ClauseCount  int       `json:"clauseCount"`
	TopRiskLevel RiskLevel `json:"topRiskLevel"`
	Summary      string    `json:"summary"`
}

// AnalysisResult is produced exactly once per successful run. Skipped is set
// when a live processed marker short-circuited the heavy stages.
type AnalysisResult struct {
	ContractID  string           `json:"contractId"`
	Fingerprint string           `json:"fingerprint"`
	Text        string           `json:"text"`
	Segments    []string         `json:"segments"`
	Embeddings  [][]float32      `json:"embeddings"`
	Reasoning   *ReasoningOutput `json:"reasoning,omitempty"`
	Checkpoints []Checkpoint     `json:"checkpoints,omitempty"`
	Skipped     bool             `json:"skipped,omitempty"`
	Summary     string           `json:"summary"`
}

// Summarize builds the short result summary stored on processed markers.
func (o *ReasoningOutput) Summarize() string {
	if o == nil {
		return "no analysis"
	}
	return fmt.Sprintf("%d clauses, top risk %s", o.ClauseCount, o.TopRiskLevel)
}
