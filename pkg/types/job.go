package types

import (
	"time"
)

// JobState is the queue-visible lifecycle state of a job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// JobPayload is the caller-supplied portion of a job. It is immutable after
// enqueue; resubmitting a dead-lettered job reuses it verbatim.
type JobPayload struct {
	FilePath   string         `json:"filePath"`
	ContractID string         `json:"contractId"`
	UserID     string         `json:"userId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Job is one analysis request as tracked by the durable queue.
type Job struct {
	ID          string
	Payload     JobPayload
	State       JobState
	Progress    int // 0..100, monotonically non-decreasing per job
	Attempts    int
	MaxAttempts int
	LastError   string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// JobStatus is the caller-facing progress view composed from queue state and
// the checkpoint history.
type JobStatus struct {
	JobID       string          `json:"jobId"`
	State       JobState        `json:"state"`
	Progress    int             `json:"progress"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Checkpoints []Checkpoint    `json:"checkpoints"`
}

// DeadLetterEntry captures a job that exhausted its attempt budget.
// Attempts equals the configured ceiling at creation time. The entry is
// deleted when the job is resubmitted.
type DeadLetterEntry struct {
	ID            string     `json:"id"`
	OriginalJobID string     `json:"originalJobId"`
	JobData       JobPayload `json:"jobData"`
	Error         string     `json:"error"`
	FailedAt      time.Time  `json:"failedAt"`
	Attempts      int        `json:"attempts"`
}

// ProcessedMarker records that a fingerprint has already been fully analyzed.
// A live (unexpired) marker short-circuits the expensive pipeline stages.
type ProcessedMarker struct {
	Fingerprint   string    `json:"fingerprint"`
	ResultSummary string    `json:"resultSummary"`
	Expiry        time.Time `json:"expiry"`
}

// Live reports whether the marker is still within its retention window.
func (m ProcessedMarker) Live(now time.Time) bool {
	return now.Before(m.Expiry)
}
