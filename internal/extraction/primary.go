package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TierResult is the per-URL outcome reported by an extraction service.
type TierResult struct {
	URL       string `json:"url"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BatchExtractor is a batch-capable extraction tier.
type BatchExtractor interface {
	// ExtractBatch submits up to PrimaryBatchSize URLs and returns per-URL
	// results keyed by URL. A missing key means the service reported
	// nothing for that URL.
	ExtractBatch(ctx context.Context, urls []string) (map[string]TierResult, error)
}

// SingleExtractor is a per-URL extraction tier.
type SingleExtractor interface {
	ExtractURL(ctx context.Context, url string) (TierResult, error)
}

// PrimaryClient calls the batch-capable primary extraction service (tier 1).
type PrimaryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewPrimaryClient creates a client for the primary extraction service.
func NewPrimaryClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *PrimaryClient {
	return &PrimaryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type primaryBatchRequest struct {
	URLs []string `json:"urls"`
}

type primaryBatchResponse struct {
	Results []TierResult `json:"results"`
}

// ExtractBatch submits a batch of URLs in a single call.
func (c *PrimaryClient) ExtractBatch(ctx context.Context, urls []string) (map[string]TierResult, error) {
	if len(urls) > PrimaryBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", len(urls), PrimaryBatchSize)
	}

	payload, err := json.Marshal(primaryBatchRequest{URLs: urls})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("primary service unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ClassifyStatus(resp.StatusCode, string(body))
	}

	var parsed primaryBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}

	results := make(map[string]TierResult, len(parsed.Results))
	for _, res := range parsed.Results {
		results[res.URL] = res
	}

	return results, nil
}
