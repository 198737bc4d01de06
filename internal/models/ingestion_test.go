package models

import "testing"

func TestIngestionStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    IngestionStatus
		to      IngestionStatus
		allowed bool
	}{
		{"pending to analyzed", IngestionStatusPending, IngestionStatusAnalyzed, true},
		{"pending to failed", IngestionStatusPending, IngestionStatusAnalysisFailed, true},
		{"pending to pending", IngestionStatusPending, IngestionStatusPending, false},
		{"analyzed back to pending", IngestionStatusAnalyzed, IngestionStatusPending, false},
		{"failed back to pending", IngestionStatusAnalysisFailed, IngestionStatusPending, false},
		{"analyzed to failed", IngestionStatusAnalyzed, IngestionStatusAnalysisFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestIngestionStatusIsTerminal(t *testing.T) {
	if IngestionStatusPending.IsTerminal() {
		t.Error("pending_analysis should not be terminal")
	}
	if !IngestionStatusAnalyzed.IsTerminal() {
		t.Error("analyzed should be terminal")
	}
	if !IngestionStatusAnalysisFailed.IsTerminal() {
		t.Error("analysis_failed should be terminal")
	}
}
