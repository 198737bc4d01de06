package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
	"github.com/google/uuid"
)

// InferenceLogRepository stores AI-call cost records.
type InferenceLogRepository struct {
	db *sql.DB
}

// NewInferenceLogRepository creates a new inference log repository.
func NewInferenceLogRepository(db *sql.DB) *InferenceLogRepository {
	return &InferenceLogRepository{db: db}
}

// Create stores an inference log entry.
func (r *InferenceLogRepository) Create(ctx context.Context, log models.InferenceLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	var metadata any
	if log.Metadata != "" {
		metadata = log.Metadata
	}

	query := `
		INSERT INTO inference_logs (
			id, provider, model, operation, tokens_used, input_tokens,
			output_tokens, latency_ms, status, error_message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.Provider, log.Model, log.Operation, log.TokensUsed,
		log.InputTokens, log.OutputTokens, log.LatencyMs, log.Status,
		log.ErrorMessage, metadata, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inference log: %w", err)
	}

	return nil
}

// TotalTokensSince sums tokens used since the given time, for cost review.
func (r *InferenceLogRepository) TotalTokensSince(ctx context.Context, since time.Time) (int, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT SUM(tokens_used) FROM inference_logs WHERE created_at >= $1", since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum tokens: %w", err)
	}
	return int(total.Int64), nil
}
