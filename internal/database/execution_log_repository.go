package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
	"github.com/google/uuid"
)

// ExecutionLogRepository records source-level scrape attempts. Each row is
// created as running and finalized exactly once as success or failed.
type ExecutionLogRepository struct {
	db *sql.DB
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Start creates a running log row for a scrape attempt.
func (r *ExecutionLogRepository) Start(ctx context.Context, sourceID, projectID string) (*models.ExecutionLog, error) {
	log := &models.ExecutionLog{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		ProjectID: projectID,
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_logs (id, source_id, project_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, log.ID, log.SourceID, log.ProjectID, log.Status, log.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution log: %w", err)
	}

	return log, nil
}

// Finalize completes a running log row. The status guard keeps the
// progression write-once: a finalized row is never rewritten.
func (r *ExecutionLogRepository) Finalize(ctx context.Context, id string, status models.ExecutionStatus, itemsFound, itemsProcessed int, errMsg string, duration time.Duration) error {
	if status != models.ExecutionStatusSuccess && status != models.ExecutionStatusFailed {
		return fmt.Errorf("invalid final status: %s", status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_logs
		SET status = $2, items_found = $3, items_processed = $4,
		    error_message = NULLIF($5, ''), completed_at = NOW(), duration_ms = $6
		WHERE id = $1 AND status = 'running'
	`, id, status, itemsFound, itemsProcessed, errMsg, int(duration.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to finalize execution log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finalize result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("execution log %s is not running", id)
	}

	return nil
}

// LastRun retrieves the most recently completed run, if any.
func (r *ExecutionLogRepository) LastRun(ctx context.Context) (*models.ExecutionLog, error) {
	query := `
		SELECT id, source_id, project_id, status, items_found, items_processed,
		       error_message, started_at, completed_at, duration_ms
		FROM execution_logs
		WHERE status != 'running'
		ORDER BY completed_at DESC
		LIMIT 1
	`

	log, err := r.scanLog(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	return log, nil
}

// LastSuccess retrieves the completion time of the most recent successful
// run across all sources.
func (r *ExecutionLogRepository) LastSuccess(ctx context.Context) (*time.Time, error) {
	var completed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(completed_at) FROM execution_logs WHERE status = 'success'").Scan(&completed)
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	if !completed.Valid {
		return nil, nil
	}

	t := completed.Time
	return &t, nil
}

func (r *ExecutionLogRepository) scanLog(row *sql.Row) (*models.ExecutionLog, error) {
	var log models.ExecutionLog
	var errMsg sql.NullString
	var completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := row.Scan(
		&log.ID, &log.SourceID, &log.ProjectID, &log.Status,
		&log.ItemsFound, &log.ItemsProcessed, &errMsg,
		&log.StartedAt, &completedAt, &durationMs,
	)
	if err != nil {
		return nil, err
	}

	log.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		log.CompletedAt = &t
	}
	if durationMs.Valid {
		ms := int(durationMs.Int64)
		log.DurationMs = &ms
	}

	return &log, nil
}
