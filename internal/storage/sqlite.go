package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Job queue operations

func (s *SQLiteStorage) CreateJob(ctx context.Context, job *types.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	now := time.Now().UTC()
	if job.State == "" {
		job.State = types.StateQueued
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}

	query := `
		INSERT INTO jobs (id, payload, contract_id, state, progress, attempts,
		                  max_attempts, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, string(payload), job.Payload.ContractID, string(job.State),
		job.Progress, job.Attempts, job.MaxAttempts,
		job.ScheduledAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

const jobColumns = `id, payload, state, progress, attempts, max_attempts,
	last_error, scheduled_at, created_at, updated_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (*types.Job, error) {
	var job types.Job
	var payload, state string
	var lastError sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&job.ID, &payload, &state, &job.Progress, &job.Attempts,
		&job.MaxAttempts, &lastError, &job.ScheduledAt, &job.CreatedAt,
		&job.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal job payload: %w", err)
	}
	job.State = types.JobState(state)
	job.LastError = lastError.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func (s *SQLiteStorage) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *SQLiteStorage) ClaimNextJob(ctx context.Context, now time.Time) (*types.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE state = ? AND scheduled_at <= ?
		ORDER BY scheduled_at, created_at
		LIMIT 1
	`, string(types.StateQueued), now.UTC())

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	updatedAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET state = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
	`, string(types.StateActive), updatedAt, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark job active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.State = types.StateActive
	job.Attempts++
	job.UpdatedAt = updatedAt
	return job, nil
}

func (s *SQLiteStorage) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	// MAX keeps reported progress monotonically non-decreasing.
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET progress = MAX(progress, ?), updated_at = ?
		WHERE id = ?
	`, progress, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) MarkJobCompleted(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, progress = 100, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(types.StateCompleted), now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) RequeueJob(ctx context.Context, jobID string, lastError string, scheduledAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, last_error = ?, scheduled_at = ?, updated_at = ?
		WHERE id = ?
	`, string(types.StateQueued), lastError, scheduledAt.UTC(), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) MarkJobFailed(ctx context.Context, jobID string, lastError string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, string(types.StateFailed), lastError, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) ListStaleJobs(ctx context.Context, cutoff time.Time) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE state = ? AND updated_at <= ?
		ORDER BY updated_at
	`, string(types.StateActive), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Checkpoint operations

func (s *SQLiteStorage) AppendCheckpoint(ctx context.Context, cp *types.Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	data, err := cp.MarshalData()
	if err != nil {
		return fmt.Errorf("marshal checkpoint data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (contract_id, step, data, created_at)
		VALUES (?, ?, ?, ?)
	`, cp.ContractID, string(cp.Step), string(data), cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListCheckpoints(ctx context.Context, contractID string) ([]types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, step, data, created_at FROM checkpoints
		WHERE contract_id = ?
		ORDER BY id
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var checkpoints []types.Checkpoint
	for rows.Next() {
		var cp types.Checkpoint
		var step string
		var data sql.NullString
		if err := rows.Scan(&cp.ContractID, &step, &data, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Step = types.CheckpointStep(step)
		if data.Valid {
			if err := cp.UnmarshalData([]byte(data.String)); err != nil {
				return nil, fmt.Errorf("unmarshal checkpoint data: %w", err)
			}
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// Processed-marker operations

func (s *SQLiteStorage) UpsertMarker(ctx context.Context, marker types.ProcessedMarker) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_markers (fingerprint, result_summary, expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			result_summary = excluded.result_summary,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`, marker.Fingerprint, marker.ResultSummary, marker.Expiry.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert marker: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetMarker(ctx context.Context, fingerprint string) (*types.ProcessedMarker, error) {
	var marker types.ProcessedMarker
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, result_summary, expiry FROM processed_markers
		WHERE fingerprint = ?
	`, fingerprint).Scan(&marker.Fingerprint, &marker.ResultSummary, &marker.Expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}
	return &marker, nil
}

func (s *SQLiteStorage) DeleteMarker(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_markers WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

// Dead-letter operations

func (s *SQLiteStorage) CreateDeadLetter(ctx context.Context, entry *types.DeadLetterEntry) error {
	jobData, err := json.Marshal(entry.JobData)
	if err != nil {
		return fmt.Errorf("marshal dead-letter payload: %w", err)
	}

	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, original_job_id, job_data, error, failed_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OriginalJobID, string(jobData), entry.Error,
		entry.FailedAt.UTC(), entry.Attempts)
	if err != nil {
		return fmt.Errorf("failed to create dead letter: %w", err)
	}
	return nil
}

func scanDeadLetter(row interface{ Scan(...any) error }) (*types.DeadLetterEntry, error) {
	var entry types.DeadLetterEntry
	var jobData string
	err := row.Scan(&entry.ID, &entry.OriginalJobID, &jobData, &entry.Error,
		&entry.FailedAt, &entry.Attempts)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(jobData), &entry.JobData); err != nil {
		return nil, fmt.Errorf("unmarshal dead-letter payload: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStorage) GetDeadLetter(ctx context.Context, id string) (*types.DeadLetterEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, original_job_id, job_data, error, failed_at, attempts
		FROM dead_letters WHERE id = ?
	`, id)

	entry, err := scanDeadLetter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStorage) ListDeadLetters(ctx context.Context) ([]types.DeadLetterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_job_id, job_data, error, failed_at, attempts
		FROM dead_letters ORDER BY failed_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.DeadLetterEntry
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) DeleteDeadLetter(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM dead_letters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}
	return requireRow(result)
}

// Analysis result operations

func (s *SQLiteStorage) SaveResult(ctx context.Context, jobID string, result *types.AnalysisResult) error {
	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	embeddings, err := json.Marshal(result.Embeddings)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}

	var reasoning sql.NullString
	if result.Reasoning != nil {
		raw, err := json.Marshal(result.Reasoning)
		if err != nil {
			return fmt.Errorf("marshal reasoning output: %w", err)
		}
		reasoning = sql.NullString{String: string(raw), Valid: true}
	}

	// Upsert: a redelivery of a job that already persisted a result (the
	// delivery failed after SaveResult) must be able to complete.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_results
			(job_id, contract_id, fingerprint, text, segments, embeddings,
			 reasoning, skipped, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			contract_id = excluded.contract_id,
			fingerprint = excluded.fingerprint,
			text = excluded.text,
			segments = excluded.segments,
			embeddings = excluded.embeddings,
			reasoning = excluded.reasoning,
			skipped = excluded.skipped,
			summary = excluded.summary
	`, jobID, result.ContractID, result.Fingerprint, result.Text,
		string(segments), string(embeddings), reasoning, result.Skipped,
		result.Summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetResultByJob(ctx context.Context, jobID string) (*types.AnalysisResult, error) {
	var result types.AnalysisResult
	var segments, embeddings string
	var reasoning sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT contract_id, fingerprint, text, segments, embeddings,
		       reasoning, skipped, summary
		FROM analysis_results WHERE job_id = ?
	`, jobID).Scan(&result.ContractID, &result.Fingerprint, &result.Text,
		&segments, &embeddings, &reasoning, &result.Skipped, &result.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal([]byte(segments), &result.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	if err := json.Unmarshal([]byte(embeddings), &result.Embeddings); err != nil {
		return nil, fmt.Errorf("unmarshal embeddings: %w", err)
	}
	if reasoning.Valid {
		result.Reasoning = &types.ReasoningOutput{}
		if err := json.Unmarshal([]byte(reasoning.String), result.Reasoning); err != nil {
			return nil, fmt.Errorf("unmarshal reasoning output: %w", err)
		}
	}
	return &result, nil
}
