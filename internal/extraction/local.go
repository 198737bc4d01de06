package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// LocalExtractor is the in-process last-resort tier (tier 3): it fetches the
// page itself and strips boilerplate readability-style, keeping article-like
// text.
type LocalExtractor struct {
	client *http.Client
	logger *slog.Logger
}

// NewLocalExtractor creates the local fallback extractor.
func NewLocalExtractor(timeout time.Duration, logger *slog.Logger) *LocalExtractor {
	return &LocalExtractor{
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

const maxFetchBytes = 2 << 20 // 2 MiB cap on fetched HTML

// ExtractURL fetches a URL and extracts its main text content.
func (e *LocalExtractor) ExtractURL(ctx context.Context, url string) (TierResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TierResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "driftline/1.0 (+content monitoring)")

	resp, err := e.client.Do(req)
	if err != nil {
		return TierResult{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TierResult{}, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	content, err := ExtractReadableText(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return TierResult{}, err
	}

	return TierResult{
		URL:       url,
		Content:   content,
		WordCount: CountWords(content),
		Success:   content != "",
	}, nil
}

// ExtractReadableText strips boilerplate from an HTML document and returns
// the remaining article text. Paragraph and heading text is preferred; when
// a page has none, the body text is used as-is.
func ExtractReadableText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside, form, noscript, iframe").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var parts []string
	doc.Find("article p, main p, h1, h2, p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}

	return dedupeJoin(parts), nil
}

// dedupeJoin joins text blocks, skipping exact repeats (the selector union
// above can match the same paragraph twice).
func dedupeJoin(parts []string) string {
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}
