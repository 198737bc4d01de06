package inference

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/models"
)

// LogStore persists inference call records.
type LogStore interface {
	Create(ctx context.Context, log models.InferenceLog) error
}

// Logger records AI detector calls for cost and latency review. Writes are
// asynchronous so a slow log insert never blocks the pipeline. A nil Logger
// is safe to call and records nothing.
type Logger struct {
	store  LogStore
	logger *slog.Logger
}

// NewLogger creates an inference logger.
func NewLogger(store LogStore, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Usage carries token counts reported by the detector API.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LogDetectorCall records one detector API call, successful or not.
func (l *Logger) LogDetectorCall(ctx context.Context, model, operation string, usage Usage, latency time.Duration, callErr error, metadata map[string]any) {
	if l == nil {
		return
	}

	var metadataJSON string
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	promptTokens := usage.PromptTokens
	completionTokens := usage.CompletionTokens
	latencyMs := int(latency.Milliseconds())

	entry := models.InferenceLog{
		Provider:     "openai",
		Model:        model,
		Operation:    operation,
		TokensUsed:   usage.TotalTokens,
		InputTokens:  &promptTokens,
		OutputTokens: &completionTokens,
		LatencyMs:    &latencyMs,
		Status:       "success",
		Metadata:     metadataJSON,
	}

	if callErr != nil {
		entry.Status = "error"
		msg := callErr.Error()
		entry.ErrorMessage = &msg
	}

	go func() {
		if err := l.store.Create(context.Background(), entry); err != nil {
			l.logger.Error("failed to record inference call", "error", err)
		}
	}()
}
