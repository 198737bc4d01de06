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

// SecondaryClient calls the per-URL secondary extraction service (tier 2).
type SecondaryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewSecondaryClient creates a client for the secondary extraction service.
func NewSecondaryClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *SecondaryClient {
	return &SecondaryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type secondaryRequest struct {
	URL string `json:"url"`
}

// ExtractURL submits one URL for extraction.
func (c *SecondaryClient) ExtractURL(ctx context.Context, url string) (TierResult, error) {
	payload, err := json.Marshal(secondaryRequest{URL: url})
	if err != nil {
		return TierResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return TierResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return TierResult{}, NewRetryableError(fmt.Errorf("secondary service unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return TierResult{}, ClassifyStatus(resp.StatusCode, string(body))
	}

	var result TierResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return TierResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.URL == "" {
		result.URL = url
	}

	return result, nil
}
