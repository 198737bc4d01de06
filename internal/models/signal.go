package models

import (
	"time"
)

// Signal is a detected narrative with risk and momentum classification.
// Content fields (headline, summary, key points) are immutable after
// creation; momentum re-analysis may only update status and momentum.
type Signal struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	SourceID   *string        `json:"source_id,omitempty"`
	Headline   string         `json:"headline"`
	Summary    string         `json:"summary"`
	KeyPoints  []string       `json:"key_points"`
	Status     SignalStatus   `json:"status"`
	Momentum   Momentum       `json:"momentum"`
	RiskLevel  RiskLevel      `json:"risk_level"`
	Tags       []string       `json:"tags,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
	Metadata   SignalMetadata `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SignalStatus tracks the lifecycle of a signal within this pipeline.
// Terminal states (dismissed, resolved) are managed outside it.
type SignalStatus string

const (
	SignalStatusNew          SignalStatus = "New"
	SignalStatusAccelerating SignalStatus = "Accelerating"
	SignalStatusStabilizing  SignalStatus = "Stabilizing"
)

// Momentum classifies how fast a narrative is spreading.
type Momentum string

const (
	MomentumHigh   Momentum = "high"
	MomentumMedium Momentum = "medium"
	MomentumLow    Momentum = "low"
)

// ParseMomentum normalizes a model-supplied momentum label, defaulting to low.
func ParseMomentum(raw string) Momentum {
	switch Momentum(raw) {
	case MomentumHigh, MomentumMedium, MomentumLow:
		return Momentum(raw)
	default:
		return MomentumLow
	}
}

// RiskLevel classifies the reputational risk a narrative carries.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ParseRiskLevel normalizes a model-supplied risk label, defaulting to low.
func ParseRiskLevel(raw string) RiskLevel {
	switch RiskLevel(raw) {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return RiskLevel(raw)
	default:
		return RiskLevelLow
	}
}

// SignalMetadata carries detector-derived context that does not warrant
// first-class columns.
type SignalMetadata struct {
	ConfidenceScore    float64  `json:"confidence_score"` // 0-1 from the detector
	Category           string   `json:"category,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
	Model              string   `json:"model,omitempty"`
}

// EvidenceType distinguishes how an evidence link was established.
type EvidenceType string

const (
	EvidenceTypeDetected EvidenceType = "detected" // created at signal-detection time
	EvidenceTypeMomentum EvidenceType = "momentum" // added during momentum re-analysis
	EvidenceTypeManual   EvidenceType = "manual"   // operator-curated, outside this pipeline
)

// EvidenceLink associates a signal with a raw ingestion supporting it.
// Every signal has at least one detected-type link at creation time.
type EvidenceLink struct {
	ID          string       `json:"id"`
	SignalID    string       `json:"signal_id"`
	IngestionID string       `json:"ingestion_id"`
	Type        EvidenceType `json:"type"`
	CreatedAt   time.Time    `json:"created_at"`
}
