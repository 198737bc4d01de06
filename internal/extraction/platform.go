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

	"github.com/driftline/driftline/internal/models"
)

// PlatformClient calls the platform extraction service that handles
// social-post and forum sources. One source maps to one service call.
type PlatformClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewPlatformClient creates a client for the platform extraction service.
func NewPlatformClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *PlatformClient {
	return &PlatformClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type platformRequest struct {
	URL   string `json:"url,omitempty"`
	Query string `json:"query,omitempty"`
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// platformRecord is the service's item shape before normalization.
type platformRecord struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	Author   string `json:"author,omitempty"`
	Platform string `json:"platform,omitempty"`
	PostedAt string `json:"posted_at,omitempty"`
}

type platformResponse struct {
	Records []platformRecord `json:"records"`
}

// Fetch retrieves records for a source. Errors are classified by HTTP
// status so the retry wrapper can distinguish transient failures.
func (c *PlatformClient) Fetch(ctx context.Context, source models.Source, kind string, limit int) ([]platformRecord, error) {
	reqBody := platformRequest{
		Kind:  kind,
		Limit: limit,
	}
	if term := SearchTerm(source.URL); term != "" {
		reqBody.Query = term
	} else {
		reqBody.URL = source.URL
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal platform request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("platform service unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ClassifyStatus(resp.StatusCode, string(body))
	}

	var parsed platformResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode platform response: %w", err)
	}

	return parsed.Records, nil
}

// SocialStrategy extracts content from social-post sources via the platform
// extraction service, capped at MaxSocialPostResults per source.
type SocialStrategy struct {
	client *PlatformClient
	policy RetryPolicy
	logger *slog.Logger
}

// NewSocialStrategy creates the social-post strategy.
func NewSocialStrategy(client *PlatformClient, policy RetryPolicy, logger *slog.Logger) *SocialStrategy {
	return &SocialStrategy{client: client, policy: policy, logger: logger}
}

// SourceType returns the source type this strategy handles.
func (s *SocialStrategy) SourceType() models.SourceType {
	return models.SourceTypeSocialPost
}

// Extract fetches and normalizes social posts for one source.
func (s *SocialStrategy) Extract(ctx context.Context, source models.Source) ([]ContentItem, error) {
	return fetchPlatform(ctx, s.client, s.policy, source, "social_post", MaxSocialPostResults)
}

// ForumStrategy extracts content from forum sources via the platform
// extraction service, capped at MaxForumResults per source.
type ForumStrategy struct {
	client *PlatformClient
	policy RetryPolicy
	logger *slog.Logger
}

// NewForumStrategy creates the forum strategy.
func NewForumStrategy(client *PlatformClient, policy RetryPolicy, logger *slog.Logger) *ForumStrategy {
	return &ForumStrategy{client: client, policy: policy, logger: logger}
}

// SourceType returns the source type this strategy handles.
func (f *ForumStrategy) SourceType() models.SourceType {
	return models.SourceTypeForum
}

// Extract fetches and normalizes forum threads for one source.
func (f *ForumStrategy) Extract(ctx context.Context, source models.Source) ([]ContentItem, error) {
	return fetchPlatform(ctx, f.client, f.policy, source, "forum", MaxForumResults)
}

func fetchPlatform(ctx context.Context, client *PlatformClient, policy RetryPolicy, source models.Source, kind string, limit int) ([]ContentItem, error) {
	var records []platformRecord

	err := Retry(ctx, policy, func() error {
		var err error
		records, err = client.Fetch(ctx, source, kind, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(records) > limit {
		records = records[:limit]
	}

	items := make([]ContentItem, 0, len(records))
	for _, rec := range records {
		// Records lacking both text and URL carry nothing usable.
		if rec.Text == "" && rec.URL == "" {
			continue
		}

		metadata := map[string]any{}
		if rec.Author != "" {
			metadata["author"] = rec.Author
		}
		if rec.Platform != "" {
			metadata["platform"] = rec.Platform
		}
		if rec.PostedAt != "" {
			metadata["posted_at"] = rec.PostedAt
		}

		items = append(items, ContentItem{
			Content:   rec.Text,
			ItemURL:   rec.URL,
			WordCount: CountWords(rec.Text),
			Method:    models.ExtractionMethodPrimary,
			Metadata:  metadata,
		})
	}

	return items, nil
}
