package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// maxReportedClauses bounds the clause list in the output.
const maxReportedClauses = 15

// minClauseLength filters short fragments out of clause extraction.
const minClauseLength = 20

// clauseIndicators mark lines that open a new clause.
var clauseIndicators = []string{
	"clause", "section", "article", "term", "condition",
	"liability", "payment", "termination", "confidentiality",
	"indemnification", "warranty", "limitation",
}

// riskKeywords are tiered indicators used for risk scoring.
var riskKeywords = map[types.RiskLevel][]string{
	types.RiskHigh: {
		"unlimited liability", "no warranty", "perpetual",
		"irrevocable", "indemnify", "waive all rights", "penalty",
		"liquidated damages", "exclusive", "non-compete",
	},
	types.RiskMedium: {
		"may terminate", "at our discretion", "subject to change",
		"without notice", "as-is", "reasonable efforts",
	},
	types.RiskLow: {
		"mutual agreement", "good faith", "standard terms",
		"best efforts", "cooperate",
	},
}

// riskFactors add weighted score on top of the keyword tiers.
var riskFactors = map[string]float64{
	"unlimited":          2.0,
	"perpetual":          1.5,
	"irrevocable":        1.5,
	"penalty":            2.0,
	"liquidated damages": 2.5,
	"exclusive":          1.5,
	"non-compete":        1.5,
	"indemnify":          1.5,
	"waive":              1.0,
	"no warranty":        1.0,
}

// LocalAnalyzer is a heuristic, fully local ReasoningClient: clause
// segmentation on blank lines and indicator headings, keyword
// classification, and tiered risk scoring clamped to [0, 10].
type LocalAnalyzer struct{}

// NewLocalAnalyzer creates a LocalAnalyzer.
func NewLocalAnalyzer() *LocalAnalyzer {
	return &LocalAnalyzer{}
}

// Analyze extracts clauses from the text and scores each one.
func (a *LocalAnalyzer) Analyze(ctx context.Context, req Request) (*types.ReasoningOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clauseTexts := extractClauses(req.Text)

	out := &types.ReasoningOutput{
		ClauseCount:  len(clauseTexts),
		TopRiskLevel: types.RiskLow,
	}

	for i, text := range clauseTexts {
		if i >= maxReportedClauses {
			break
		}
		clause := scoreClause(text)
		out.TopRiskLevel = out.TopRiskLevel.Max(clause.RiskLevel)
		out.Clauses = append(out.Clauses, clause)
	}

	out.Summary = fmt.Sprintf("extracted %d clauses, top risk %s",
		out.ClauseCount, out.TopRiskLevel)
	return out, nil
}

// extractClauses segments the document into clauses: blank lines close the
// current clause, indicator headings open a new one, and fragments shorter
// than minClauseLength are dropped.
func extractClauses(document string) []string {
	var clauses []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, " ")
		if len(text) > minClauseLength {
			clauses = append(clauses, text)
		}
		current = nil
	}

	for _, line := range strings.Split(document, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if hasClauseIndicator(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return clauses
}

func hasClauseIndicator(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range clauseIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// scoreClause classifies one clause and assigns its risk level, score, and
// recommendation.
func scoreClause(text string) types.Clause {
	lower := strings.ToLower(text)

	count := func(level types.RiskLevel) int {
		n := 0
		for _, kw := range riskKeywords[level] {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		return n
	}

	highCount := count(types.RiskHigh)
	mediumCount := count(types.RiskMedium)
	lowCount := count(types.RiskLow)

	var additional float64
	for keyword, weight := range riskFactors {
		if strings.Contains(lower, keyword) {
			additional += weight
		}
	}

	var level types.RiskLevel
	var score float64
	switch {
	case highCount >= 2 || additional >= 3:
		level = types.RiskHigh
		extra := highCount
		if extra > 2 {
			extra = 2
		}
		score = 8 + float64(extra) + additional*0.5
	case highCount >= 1 || mediumCount >= 2 || additional >= 1.5:
		level = types.RiskMedium
		score = 5 + float64(highCount) + float64(mediumCount)*0.5 + additional*0.3
	default:
		level = types.RiskLow
		score = 2 + float64(mediumCount)*0.5 - float64(lowCount)*0.3 + additional*0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	return types.Clause{
		Text:           text,
		Type:           classifyClause(lower),
		RiskLevel:      level,
		RiskScore:      score,
		Recommendation: recommendation(level, score),
	}
}

func classifyClause(lower string) types.ClauseType {
	switch {
	case containsAny(lower, "liability", "indemnif", "warrant", "damage"):
		return types.ClauseLiability
	case containsAny(lower, "payment", "fee", "price", "cost", "charge"):
		return types.ClauseFinancial
	case containsAny(lower, "terminate", "cancel", "expir", "end"):
		return types.ClauseTermination
	case containsAny(lower, "confidential", "proprietary", "secret", "private"):
		return types.ClauseConfidentiality
	case containsAny(lower, "intellectual", "copyright", "patent", "trademark"):
		return types.ClauseIP
	case containsAny(lower, "force majeure", "act of god", "unforeseen"):
		return types.ClauseForceMajeure
	}
	return types.ClauseGeneral
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func recommendation(level types.RiskLevel, score float64) string {
	switch {
	case level == types.RiskHigh || score >= 8:
		return "Immediate legal review required - high risk terms identified"
	case level == types.RiskMedium || score >= 5:
		return "Legal review recommended - moderate risk terms present"
	default:
		return "Standard review - low risk terms"
	}
}
