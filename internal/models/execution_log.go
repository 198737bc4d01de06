package models

import "time"

// ExecutionStatus tracks the lifecycle of one source-level scrape attempt.
// A log row is created as running and finalized exactly once as success or
// failed.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// ExecutionLog records one scrape attempt against a source.
type ExecutionLog struct {
	ID             string          `json:"id"`
	SourceID       string          `json:"source_id"`
	ProjectID      string          `json:"project_id"`
	Status         ExecutionStatus `json:"status"`
	ItemsFound     int             `json:"items_found"`
	ItemsProcessed int             `json:"items_processed"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	DurationMs     *int            `json:"duration_ms,omitempty"`
}
