package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
)

// SourceRepository handles monitored-source reads and last-scraped updates.
// Sources are created through the configuration surface; this pipeline never
// inserts or deletes them.
type SourceRepository struct {
	db *sql.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = "id, project_id, url, type, active, last_scraped_at, created_at"

func scanSource(scanner interface{ Scan(...any) error }) (models.Source, error) {
	var s models.Source
	var lastScraped sql.NullTime

	if err := scanner.Scan(&s.ID, &s.ProjectID, &s.URL, &s.Type, &s.Active, &lastScraped, &s.CreatedAt); err != nil {
		return models.Source{}, err
	}
	if lastScraped.Valid {
		t := lastScraped.Time
		s.LastScrapedAt = &t
	}

	return s, nil
}

// ListActive retrieves all active sources across all active projects.
func (r *SourceRepository) ListActive(ctx context.Context) ([]models.Source, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sources s
		JOIN projects p ON p.id = s.project_id
		WHERE s.active AND p.active
		ORDER BY s.created_at
	`, sourceColumnsPrefixed("s"))

	return r.list(ctx, query)
}

// ListActiveByProject retrieves the active sources of one project.
func (r *SourceRepository) ListActiveByProject(ctx context.Context, projectID string) ([]models.Source, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sources
		WHERE project_id = $1 AND active
		ORDER BY created_at
	`, sourceColumns)

	return r.list(ctx, query, projectID)
}

// GetByID retrieves a source by ID. Returns nil when not found.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := fmt.Sprintf("SELECT %s FROM sources WHERE id = $1", sourceColumns)

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	return &source, nil
}

// UpdateLastScraped advances a source's last_scraped_at timestamp.
func (r *SourceRepository) UpdateLastScraped(ctx context.Context, id string, scrapedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sources SET last_scraped_at = $2 WHERE id = $1", id, scrapedAt)
	if err != nil {
		return fmt.Errorf("failed to update last_scraped_at: %w", err)
	}
	return nil
}

func (r *SourceRepository) list(ctx context.Context, query string, args ...any) ([]models.Source, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

func sourceColumnsPrefixed(alias string) string {
	return alias + ".id, " + alias + ".project_id, " + alias + ".url, " + alias + ".type, " +
		alias + ".active, " + alias + ".last_scraped_at, " + alias + ".created_at"
}
