package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
)

// MomentumSummary aggregates one momentum re-analysis pass.
type MomentumSummary struct {
	SignalsExamined int `json:"signals_examined"`
	Updated         int `json:"signals_updated"`
	EvidenceAdded   int `json:"evidence_added"`
}

// AnalyzeMomentum re-assesses a project's recent signals against the
// ingestions from the same trailing window. Only status and momentum are
// mutated; signal content is immutable after detection. Model trouble yields
// an empty summary rather than an error.
func (s *Service) AnalyzeMomentum(ctx context.Context, projectID string, lookbackHours int) (MomentumSummary, error) {
	since := s.now().Add(-time.Duration(lookbackHours) * time.Hour)

	signals, err := s.signals.ListByProjectSince(ctx, projectID, since, momentumSignalLimit)
	if err != nil {
		return MomentumSummary{}, fmt.Errorf("failed to list signals: %w", err)
	}

	summary := MomentumSummary{SignalsExamined: len(signals)}
	if len(signals) == 0 {
		return summary, nil
	}

	ingestions, err := s.ingestions.ListByProjectSince(ctx, projectID, since, momentumIngestionLimit)
	if err != nil {
		return summary, fmt.Errorf("failed to list ingestions: %w", err)
	}

	raw, err := s.completer.Complete(ctx, "momentum_analysis",
		momentumSystemPrompt, BuildMomentumPrompt(signals, ingestions))
	if err != nil {
		s.logger.Warn("momentum analysis call failed",
			"project_id", projectID, "error", err)
		return summary, nil
	}

	updates, err := ParseMomentumResponse(raw)
	if err != nil {
		s.logger.Warn("momentum analysis returned malformed output",
			"project_id", projectID, "error", err)
		return summary, nil
	}

	known := make(map[string]models.Signal, len(signals))
	for _, sig := range signals {
		known[sig.ID] = sig
	}
	ingested := make(map[string]bool, len(ingestions))
	for _, ing := range ingestions {
		ingested[ing.ID] = true
	}

	for _, update := range updates {
		current, ok := known[update.SignalID]
		if !ok {
			s.logger.Warn("momentum update for unknown signal, skipping",
				"signal_id", update.SignalID)
			continue
		}

		status := parseSignalStatus(update.Status, current.Status)
		momentum := models.ParseMomentum(update.Momentum)

		if err := s.signals.UpdateMomentum(ctx, current.ID, status, momentum); err != nil {
			return summary, fmt.Errorf("failed to update signal momentum: %w", err)
		}
		summary.Updated++

		for _, ingID := range update.SupportingIngestionIDs {
			if !ingested[ingID] {
				continue
			}
			link := &models.EvidenceLink{
				SignalID:    current.ID,
				IngestionID: ingID,
				Type:        models.EvidenceTypeMomentum,
			}
			if err := s.signals.CreateEvidence(ctx, link); err != nil {
				s.logger.Warn("failed to add momentum evidence",
					"signal_id", current.ID, "ingestion_id", ingID, "error", err)
				continue
			}
			summary.EvidenceAdded++
		}
	}

	s.logger.Info("momentum pass complete",
		"project_id", projectID,
		"examined", summary.SignalsExamined,
		"updated", summary.Updated,
		"evidence_added", summary.EvidenceAdded)

	return summary, nil
}

// parseSignalStatus normalizes a model-supplied status, keeping the current
// one when the label is unrecognized.
func parseSignalStatus(raw string, current models.SignalStatus) models.SignalStatus {
	switch models.SignalStatus(raw) {
	case models.SignalStatusNew, models.SignalStatusAccelerating, models.SignalStatusStabilizing:
		return models.SignalStatus(raw)
	default:
		return current
	}
}
