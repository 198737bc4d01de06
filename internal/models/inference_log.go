package models

import "time"

// InferenceLog records a single call to the AI detector for cost tracking.
type InferenceLog struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Operation    string    `json:"operation"` // "signal_detection" or "momentum_analysis"
	TokensUsed   int       `json:"tokens_used"`
	InputTokens  *int      `json:"input_tokens,omitempty"`
	OutputTokens *int      `json:"output_tokens,omitempty"`
	LatencyMs    *int      `json:"latency_ms,omitempty"`
	Status       string    `json:"status"` // "success" or "error"
	ErrorMessage *string   `json:"error_message,omitempty"`
	Metadata     string    `json:"metadata,omitempty"` // JSON-encoded context
	CreatedAt    time.Time `json:"created_at"`
}
