package models

import (
	"time"
)

// RawIngestion is one deduplicated unit of extracted content awaiting or
// having undergone signal detection. Content fields never change after
// insert; only the analysis lifecycle fields are mutated.
type RawIngestion struct {
	ID           string           `json:"id"`
	SourceID     string           `json:"source_id"`
	ProjectID    string           `json:"project_id"`
	Content      string           `json:"content"`
	ContentHash  string           `json:"content_hash"` // SHA-256 of the content text, globally unique
	ItemURL      string           `json:"item_url"`
	WordCount    int              `json:"word_count"`
	Method       ExtractionMethod `json:"extraction_method"`
	Status       IngestionStatus  `json:"status"`
	ScrapedAt    time.Time        `json:"scraped_at"`
	AnalyzedAt   *time.Time       `json:"analyzed_at,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ExtractionMethod records which tier produced the content.
type ExtractionMethod string

const (
	ExtractionMethodPrimary   ExtractionMethod = "primary"
	ExtractionMethodSecondary ExtractionMethod = "secondary"
	ExtractionMethodLocal     ExtractionMethod = "local-fallback"
)

// IngestionStatus tracks the analysis lifecycle of an ingestion.
type IngestionStatus string

const (
	IngestionStatusPending        IngestionStatus = "pending_analysis"
	IngestionStatusAnalyzed       IngestionStatus = "analyzed"
	IngestionStatusAnalysisFailed IngestionStatus = "analysis_failed"
)

// CanTransitionTo enforces the status machine: pending_analysis may move to
// analyzed or analysis_failed; both of those are terminal.
func (s IngestionStatus) CanTransitionTo(next IngestionStatus) bool {
	if s != IngestionStatusPending {
		return false
	}
	return next == IngestionStatusAnalyzed || next == IngestionStatusAnalysisFailed
}

// IsTerminal reports whether the status admits no further transitions.
func (s IngestionStatus) IsTerminal() bool {
	return s == IngestionStatusAnalyzed || s == IngestionStatusAnalysisFailed
}

// MinWordCount is the noise floor: content at or below this word count is
// never persisted.
const MinWordCount = 100
