package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/driftline/driftline/internal/models"
)

// ProjectRepository handles project storage and refresh bookkeeping.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListActive retrieves all active projects with their last successful scrape
// time. The refresh timestamp is derived from execution history: the most
// recent successful run across the project's sources.
func (r *ProjectRepository) ListActive(ctx context.Context) ([]models.Project, error) {
	query := `
		SELECT p.id, p.name, p.active, p.refresh_interval_hours, p.created_at,
		       (SELECT MAX(el.completed_at)
		        FROM execution_logs el
		        WHERE el.project_id = p.id AND el.status = 'success') AS last_refreshed_at
		FROM projects p
		WHERE p.active
		ORDER BY p.created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var lastRefreshed sql.NullTime

		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.RefreshIntervalHours, &p.CreatedAt, &lastRefreshed); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if lastRefreshed.Valid {
			t := lastRefreshed.Time
			p.LastRefreshedAt = &t
		}

		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// GetByID retrieves a single project. Returns nil when not found.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT p.id, p.name, p.active, p.refresh_interval_hours, p.created_at,
		       (SELECT MAX(el.completed_at)
		        FROM execution_logs el
		        WHERE el.project_id = p.id AND el.status = 'success') AS last_refreshed_at
		FROM projects p
		WHERE p.id = $1
	`

	var p models.Project
	var lastRefreshed sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Active, &p.RefreshIntervalHours, &p.CreatedAt, &lastRefreshed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	if lastRefreshed.Valid {
		t := lastRefreshed.Time
		p.LastRefreshedAt = &t
	}

	return &p, nil
}
