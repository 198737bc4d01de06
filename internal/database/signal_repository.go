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

// SignalRepository handles signal and evidence-link storage.
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create stores a new signal.
func (r *SignalRepository) Create(ctx context.Context, signal *models.Signal) error {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	now := time.Now()
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = now
	}
	signal.UpdatedAt = now

	keyPointsJSON, err := json.Marshal(orEmpty(signal.KeyPoints))
	if err != nil {
		return fmt.Errorf("failed to marshal key points: %w", err)
	}
	tagsJSON, err := json.Marshal(orEmpty(signal.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(signal.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO signals (
			id, project_id, source_id, headline, summary, key_points,
			status, momentum, risk_level, tags, detected_at, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		signal.ID,
		signal.ProjectID,
		signal.SourceID,
		signal.Headline,
		signal.Summary,
		keyPointsJSON,
		signal.Status,
		signal.Momentum,
		signal.RiskLevel,
		tagsJSON,
		signal.DetectedAt,
		metadataJSON,
		signal.CreatedAt,
		signal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	return nil
}

// CreateEvidence links a signal to a supporting ingestion. Re-linking the
// same pair with the same type is a no-op.
func (r *SignalRepository) CreateEvidence(ctx context.Context, link *models.EvidenceLink) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO signal_evidence (id, signal_id, ingestion_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (signal_id, ingestion_id, type) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.SignalID, link.IngestionID, link.Type, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert evidence link: %w", err)
	}

	return nil
}

// UpdateMomentum updates a signal's status and momentum. Content fields are
// immutable after creation; this is the only mutation momentum re-analysis
// performs.
func (r *SignalRepository) UpdateMomentum(ctx context.Context, id string, status models.SignalStatus, momentum models.Momentum) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE signals
		SET status = $2, momentum = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, momentum)
	if err != nil {
		return fmt.Errorf("failed to update signal momentum: %w", err)
	}

	return nil
}

const signalColumns = `id, project_id, source_id, headline, summary, key_points,
	status, momentum, risk_level, tags, detected_at, metadata, created_at, updated_at`

// ListByProjectSince retrieves a project's signals detected within a
// trailing window.
func (r *SignalRepository) ListByProjectSince(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM signals
		WHERE project_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC
		LIMIT $3
	`, signalColumns)

	rows, err := r.db.QueryContext(ctx, query, projectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		var sourceID sql.NullString
		var keyPointsJSON, tagsJSON, metadataJSON []byte

		err := rows.Scan(
			&s.ID, &s.ProjectID, &sourceID, &s.Headline, &s.Summary, &keyPointsJSON,
			&s.Status, &s.Momentum, &s.RiskLevel, &tagsJSON, &s.DetectedAt,
			&metadataJSON, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		if sourceID.Valid {
			id := sourceID.String
			s.SourceID = &id
		}
		if err := json.Unmarshal(keyPointsJSON, &s.KeyPoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key points: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &s.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		signals = append(signals, s)
	}

	return signals, rows.Err()
}

// CountEvidence returns the number of evidence links for a signal, by type.
func (r *SignalRepository) CountEvidence(ctx context.Context, signalID string, evidenceType models.EvidenceType) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM signal_evidence WHERE signal_id = $1 AND type = $2",
		signalID, evidenceType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return count, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
