package detection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/inference"
)

// Completer runs one completion against the AI detector and returns its raw
// text output.
type Completer interface {
	Complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// OpenAIDetector is the production Completer, backed by the OpenAI chat
// completions API with JSON response mode and rate-limit retry.
type OpenAIDetector struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	costs       *inference.Logger
	logger      *slog.Logger
}

// NewOpenAIDetector creates a detector from configuration. The cost logger
// may be nil.
func NewOpenAIDetector(cfg config.DetectorConfig, costs *inference.Logger, logger *slog.Logger) *OpenAIDetector {
	return &OpenAIDetector{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		costs:       costs,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (d *OpenAIDetector) Model() string {
	return d.model
}

// Complete sends one chat completion. Rate-limit responses are retried with
// exponential backoff and jitter; other API errors surface immediately.
func (d *OpenAIDetector) Complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error) {
	const maxRetries = 3
	baseDelay := 1 * time.Second

	var resp openai.ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		apiCtx, cancel := context.WithTimeout(ctx, d.timeout)
		start := time.Now()

		resp, err = d.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
			Model:               d.model,
			Temperature:         d.temperature,
			MaxCompletionTokens: d.maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		cancel()

		latency := time.Since(start)

		usage := inference.Usage{}
		if err == nil {
			usage = inference.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		d.costs.LogDetectorCall(ctx, d.model, operation, usage, latency, err, map[string]any{
			"attempt": attempt + 1,
		})

		if err == nil {
			break
		}

		if isRateLimited(err) && attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			delay += time.Duration(rand.Intn(500)) * time.Millisecond

			d.logger.Warn("detector rate limited, retrying",
				"operation", operation,
				"attempt", attempt+1,
				"delay_ms", delay.Milliseconds())

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		break
	}

	if err != nil {
		return "", fmt.Errorf("detector call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", d.model)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from model %s (finish_reason: %s)",
			d.model, resp.Choices[0].FinishReason)
	}

	return content, nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "Rate limit")
}
