package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
	"github.com/google/uuid"
)

// IngestionRepository handles raw ingestion storage. The UNIQUE constraint
// on content_hash makes Insert idempotent under retried or overlapping
// scrape runs; it is the only concurrency-safety mechanism the pipeline
// relies on.
type IngestionRepository struct {
	db *sql.DB
}

// NewIngestionRepository creates a new ingestion repository.
func NewIngestionRepository(db *sql.DB) *IngestionRepository {
	return &IngestionRepository{db: db}
}

// Insert attempts to store an ingestion. It reports false when a row with
// the same content hash already exists (a duplicate, not an error).
func (r *IngestionRepository) Insert(ctx context.Context, ing *models.RawIngestion) (bool, error) {
	if ing.ID == "" {
		ing.ID = uuid.New().String()
	}
	if ing.Status == "" {
		ing.Status = models.IngestionStatusPending
	}

	var metadataJSON []byte
	var err error
	if ing.Metadata != nil {
		metadataJSON, err = json.Marshal(ing.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO raw_ingestions (
			id, source_id, project_id, content, content_hash, item_url,
			word_count, extraction_method, status, scraped_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_hash) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		ing.ID,
		ing.SourceID,
		ing.ProjectID,
		ing.Content,
		ing.ContentHash,
		ing.ItemURL,
		ing.WordCount,
		ing.Method,
		ing.Status,
		ing.ScrapedAt,
		metadataJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert ingestion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected == 1, nil
}

// MarkAnalyzed transitions an ingestion from pending_analysis to analyzed.
// The status guard in the WHERE clause enforces monotonicity: terminal rows
// are never rewritten.
func (r *IngestionRepository) MarkAnalyzed(ctx context.Context, id string, analyzedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE raw_ingestions
		SET status = 'analyzed', analyzed_at = $2, error_message = NULL
		WHERE id = $1 AND status = 'pending_analysis'
	`, id, analyzedAt)
	if err != nil {
		return fmt.Errorf("failed to mark ingestion analyzed: %w", err)
	}

	return requireTransition(result, id)
}

// MarkAnalysisFailed transitions an ingestion from pending_analysis to
// analysis_failed, recording the error text.
func (r *IngestionRepository) MarkAnalysisFailed(ctx context.Context, id string, errMsg string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE raw_ingestions
		SET status = 'analysis_failed', analyzed_at = NOW(), error_message = $2
		WHERE id = $1 AND status = 'pending_analysis'
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark ingestion failed: %w", err)
	}

	return requireTransition(result, id)
}

func requireTransition(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ingestion %s is not pending_analysis", id)
	}
	return nil
}

const ingestionColumns = `id, source_id, project_id, content, content_hash, item_url,
	word_count, extraction_method, status, scraped_at, analyzed_at, error_message, metadata, created_at`

func scanIngestion(scanner interface{ Scan(...any) error }) (models.RawIngestion, error) {
	var ing models.RawIngestion
	var analyzedAt sql.NullTime
	var errMsg sql.NullString
	var metadataJSON []byte

	err := scanner.Scan(
		&ing.ID, &ing.SourceID, &ing.ProjectID, &ing.Content, &ing.ContentHash,
		&ing.ItemURL, &ing.WordCount, &ing.Method, &ing.Status, &ing.ScrapedAt,
		&analyzedAt, &errMsg, &metadataJSON, &ing.CreatedAt,
	)
	if err != nil {
		return models.RawIngestion{}, err
	}

	if analyzedAt.Valid {
		t := analyzedAt.Time
		ing.AnalyzedAt = &t
	}
	ing.ErrorMessage = errMsg.String
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &ing.Metadata); err != nil {
			return models.RawIngestion{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return ing, nil
}

// GetByID retrieves an ingestion by ID. Returns nil when not found.
func (r *IngestionRepository) GetByID(ctx context.Context, id string) (*models.RawIngestion, error) {
	query := fmt.Sprintf("SELECT %s FROM raw_ingestions WHERE id = $1", ingestionColumns)

	ing, err := scanIngestion(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion: %w", err)
	}

	return &ing, nil
}

// ListPendingByProject retrieves pending ingestions for a project scraped
// since the given time.
func (r *IngestionRepository) ListPendingByProject(ctx context.Context, projectID string, since time.Time, limit int) ([]models.RawIngestion, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM raw_ingestions
		WHERE project_id = $1 AND status = 'pending_analysis' AND scraped_at >= $2
		ORDER BY scraped_at
		LIMIT $3
	`, ingestionColumns)

	return r.list(ctx, query, projectID, since, limit)
}

// ListByProjectSince retrieves all ingestions for a project in a trailing
// window, regardless of status. Used by momentum re-analysis.
func (r *IngestionRepository) ListByProjectSince(ctx context.Context, projectID string, since time.Time, limit int) ([]models.RawIngestion, error) {
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf(`
		SELECT %s FROM raw_ingestions
		WHERE project_id = $1 AND scraped_at >= $2
		ORDER BY scraped_at DESC
		LIMIT $3
	`, ingestionColumns)

	return r.list(ctx, query, projectID, since, limit)
}

// ListStuck retrieves ingestions still pending_analysis past the given age.
// Stuck rows are surfaced for monitoring, never auto-cancelled.
func (r *IngestionRepository) ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]models.RawIngestion, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM raw_ingestions
		WHERE status = 'pending_analysis' AND scraped_at < $1
		ORDER BY scraped_at
		LIMIT $2
	`, ingestionColumns)

	return r.list(ctx, query, olderThan, limit)
}

func (r *IngestionRepository) list(ctx context.Context, query string, args ...any) ([]models.RawIngestion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestions: %w", err)
	}
	defer rows.Close()

	var ingestions []models.RawIngestion
	for rows.Next() {
		ing, err := scanIngestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingestion: %w", err)
		}
		ingestions = append(ingestions, ing)
	}

	return ingestions, rows.Err()
}
