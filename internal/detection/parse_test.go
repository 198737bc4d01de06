package detection

import "testing"

func TestParseDetectorResponse(t *testing.T) {
	raw := `{
		"signals": [
			{
				"title": "Recall rumors spreading",
				"category": "product",
				"risk_level": "high",
				"momentum": "medium",
				"summary": "Multiple posts claim an unannounced recall.",
				"key_points": ["claim repeated across forums"],
				"recommended_actions": ["issue statement"],
				"confidence_score": 0.82
			}
		]
	}`

	signals, err := ParseDetectorResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].Title != "Recall rumors spreading" {
		t.Errorf("unexpected title %q", signals[0].Title)
	}
	if signals[0].ConfidenceScore != 0.82 {
		t.Errorf("unexpected confidence %v", signals[0].ConfidenceScore)
	}
}

func TestParseDetectorResponseStripsMarkdownFences(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"signals\": []}\n```"

	signals, err := ParseDetectorResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected empty list, got %d signals", len(signals))
	}
}

func TestParseDetectorResponseEmptyListIsValid(t *testing.T) {
	signals, err := ParseDetectorResponse(`{"signals": []}`)
	if err != nil {
		t.Fatalf("empty list must parse cleanly: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %d", len(signals))
	}
}

func TestParseDetectorResponseMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       "I could not find any narratives here.",
		"missing list":   `{"narratives": []}`,
		"wrong shape":    `{"signals": {"title": "x"}}`,
		"truncated json": `{"signals": [{"title": "x"`,
	}

	for name, raw := range cases {
		if _, err := ParseDetectorResponse(raw); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseDetectorResponseClampsConfidence(t *testing.T) {
	raw := `{"signals": [
		{"title": "a", "confidence_score": 1.7},
		{"title": "b", "confidence_score": -0.2}
	]}`

	signals, err := ParseDetectorResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals[0].ConfidenceScore != 1 || signals[1].ConfidenceScore != 0 {
		t.Errorf("confidence not clamped: %v, %v",
			signals[0].ConfidenceScore, signals[1].ConfidenceScore)
	}
}

func TestParseMomentumResponse(t *testing.T) {
	raw := "```\n" + `{"updates": [
		{"signal_id": "sig-1", "status": "Accelerating", "momentum": "high", "supporting_ingestion_ids": ["ing-1", "ing-2"]}
	]}` + "\n```"

	updates, err := ParseMomentumResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].SignalID != "sig-1" || updates[0].Momentum != "high" {
		t.Errorf("unexpected update: %+v", updates[0])
	}
	if len(updates[0].SupportingIngestionIDs) != 2 {
		t.Errorf("expected 2 supporting ids, got %d", len(updates[0].SupportingIngestionIDs))
	}
}

func TestParseMomentumResponseMalformed(t *testing.T) {
	if _, err := ParseMomentumResponse("momentum looks stable overall"); err == nil {
		t.Error("expected error for prose response")
	}
	if _, err := ParseMomentumResponse(`{"changes": []}`); err == nil {
		t.Error("expected error for missing updates list")
	}
}
