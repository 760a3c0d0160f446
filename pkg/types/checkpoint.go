package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckpointStep identifies the pipeline stage a checkpoint records.
type CheckpointStep string

const (
	StepHashChecked            CheckpointStep = "hash_checked"
	StepOCRCompleted           CheckpointStep = "ocr_completed"
	StepEmbeddingsGenerated    CheckpointStep = "embeddings_generated"
	StepAgentAnalysisCompleted CheckpointStep = "agent_analysis_completed"
	StepCompleted              CheckpointStep = "completed"
)

// StepSequence is the only valid forward progression for a run that executes
// every stage. Skipped fast-path jobs short-circuit after hash_checked.
var StepSequence = []CheckpointStep{
	StepHashChecked,
	StepOCRCompleted,
	StepEmbeddingsGenerated,
	StepAgentAnalysisCompleted,
	StepCompleted,
}

// Valid reports whether the step is one of the known pipeline stages.
func (s CheckpointStep) Valid() bool {
	switch s {
	case StepHashChecked, StepOCRCompleted, StepEmbeddingsGenerated,
		StepAgentAnalysisCompleted, StepCompleted:
		return true
	}
	return false
}

// Checkpoint is a durable record that one pipeline stage completed for one
// contract. Checkpoints are append-only and strictly ordered by CreatedAt
// within a contract.
type Checkpoint struct {
	ContractID string         `json:"contractId"`
	Step       CheckpointStep `json:"step"`
	Data       CheckpointData `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// CheckpointData is a tagged union keyed by step: exactly one field is set,
// matching the Checkpoint's Step. This keeps the checkpoint history
// type-safe while remaining an opaque JSON payload at the storage layer.
type CheckpointData struct {
	HashChecked   *HashCheckedData   `json:"hashChecked,omitempty"`
	OCRCompleted  *OCRCompletedData  `json:"ocrCompleted,omitempty"`
	Embeddings    *EmbeddingsData    `json:"embeddings,omitempty"`
	AgentAnalysis *AgentAnalysisData `json:"agentAnalysis,omitempty"`
	Completed     *CompletedData     `json:"completed,omitempty"`
}

// HashCheckedData records the fingerprint computed for the input file and
// whether a live processed marker caused the run to short-circuit.
type HashCheckedData struct {
	Fingerprint string `json:"fingerprint"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// OCRCompletedData records the outcome of text extraction.
type OCRCompletedData struct {
	TextLength int    `json:"textLength"`
	Strategy   string `json:"strategy"`
}

// EmbeddingsData records the shape of the generated embeddings.
type EmbeddingsData struct {
	SegmentCount int `json:"segmentCount"`
	Dimension    int `json:"dimension"`
}

// AgentAnalysisData records headline figures from the reasoning stage.
type AgentAnalysisData struct {
	ClauseCount  int    `json:"clauseCount"`
	TopRiskLevel string `json:"topRiskLevel"`
}

// CompletedData marks the terminal checkpoint of a successful run.
type CompletedData struct {
	ResultSummary string `json:"resultSummary"`
}

// DataForStep builds the union with the payload slot matching step filled in.
// The payload must be the pointer type corresponding to the step.
func DataForStep(step CheckpointStep, payload any) (CheckpointData, error) {
	var d CheckpointData
	switch p := payload.(type) {
	case *HashCheckedData:
		if step != StepHashChecked {
			return d, fmt.Errorf("payload %T does not match step %s", p, step)
		}
		d.HashChecked = p
	case *OCRCompletedData:
		if step != StepOCRCompleted {
			return d, fmt.Errorf("payload %T does not match step %s", p, step)
		}
		d.OCRCompleted = p
	case *EmbeddingsData:
		if step != StepEmbeddingsGenerated {
			return d, fmt.Errorf("payload %T does not match step %s", p, step)
		}
		d.Embeddings = p
	case *AgentAnalysisData:
		if step != StepAgentAnalysisCompleted {
			return d, fmt.Errorf("payload %T does not match step %s", p, step)
		}
		d.AgentAnalysis = p
	case *CompletedData:
		if step != StepCompleted {
			return d, fmt.Errorf("payload %T does not match step %s", p, step)
		}
		d.Completed = p
	default:
		return d, fmt.Errorf("unknown checkpoint payload type %T", payload)
	}
	return d, nil
}

// MarshalData serializes the union for storage.
func (c *Checkpoint) MarshalData() ([]byte, error) {
	return json.Marshal(c.Data)
}

// UnmarshalData deserializes a stored payload into the union.
func (c *Checkpoint) UnmarshalData(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &c.Data)
}
