package detection

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// DetectedSignal is one narrative as reported by the detector, before
// persistence.
type DetectedSignal struct {
	Title              string   `json:"title"`
	Category           string   `json:"category"`
	RiskLevel          string   `json:"risk_level"`
	Momentum           string   `json:"momentum"`
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	RecommendedActions []string `json:"recommended_actions"`
	ConfidenceScore    float64  `json:"confidence_score"`
}

// MomentumUpdate is one signal adjustment as reported by the momentum pass.
type MomentumUpdate struct {
	SignalID               string   `json:"signal_id"`
	Status                 string   `json:"status"`
	Momentum               string   `json:"momentum"`
	SupportingIngestionIDs []string `json:"supporting_ingestion_ids"`
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*({.+})\\s*```")
var bareJSONRe = regexp.MustCompile(`(?s)^\s*({.+})\s*$`)

// extractJSON strips markdown fences and surrounding noise the model
// sometimes wraps its output in.
func extractJSON(raw string) string {
	if matches := fencedJSONRe.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1]
	}
	if matches := bareJSONRe.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1]
	}
	return raw
}

// ParseDetectorResponse converts the detector's text output into detected
// signals. A response that is not valid JSON, or lacks the signals list,
// is an error; an empty list is a valid answer.
func ParseDetectorResponse(raw string) ([]DetectedSignal, error) {
	var payload struct {
		Signals json.RawMessage `json:"signals"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed detector response: %w", err)
	}
	if payload.Signals == nil {
		return nil, fmt.Errorf("detector response missing signals list")
	}

	var signals []DetectedSignal
	if err := json.Unmarshal(payload.Signals, &signals); err != nil {
		return nil, fmt.Errorf("malformed signals list: %w", err)
	}

	for i := range signals {
		if signals[i].ConfidenceScore < 0 {
			signals[i].ConfidenceScore = 0
		}
		if signals[i].ConfidenceScore > 1 {
			signals[i].ConfidenceScore = 1
		}
	}

	return signals, nil
}

// ParseMomentumResponse converts the momentum pass output into updates.
func ParseMomentumResponse(raw string) ([]MomentumUpdate, error) {
	var payload struct {
		Updates json.RawMessage `json:"updates"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("malformed momentum response: %w", err)
	}
	if payload.Updates == nil {
		return nil, fmt.Errorf("momentum response missing updates list")
	}

	var updates []MomentumUpdate
	if err := json.Unmarshal(payload.Updates, &updates); err != nil {
		return nil, fmt.Errorf("malformed updates list: %w", err)
	}

	return updates, nil
}
