package extraction

import (
	"context"
	"net/url"
	"strings"

	"github.com/driftline/driftline/internal/models"
)

// ContentItem is one unit of extracted content, normalized across
// strategies: the text, the URL of the specific item, its word count, the
// tier that produced it, and free-form provenance metadata.
type ContentItem struct {
	Content   string
	ItemURL   string
	WordCount int
	Method    models.ExtractionMethod
	Metadata  map[string]any
}

// Strategy extracts content items for a single source.
type Strategy interface {
	// SourceType returns the source type this strategy handles.
	SourceType() models.SourceType

	// Extract retrieves zero-or-more content items for the source.
	Extract(ctx context.Context, source models.Source) ([]ContentItem, error)
}

// Result pairs the outcome of an extraction for one source.
type Result struct {
	Items []ContentItem
	Err   error
}

// Per-strategy caps on items returned by the platform extraction service.
const (
	MaxSocialPostResults = 20
	MaxForumResults      = 50
)

// PrimaryBatchSize is the maximum number of URLs submitted to the primary
// extraction service in one call.
const PrimaryBatchSize = 20

// socialHosts and forumHosts drive URL classification. Hosts are matched by
// suffix so subdomains classify the same as their parent.
var socialHosts = []string{
	"twitter.com", "x.com", "bsky.app", "mastodon.social",
	"instagram.com", "tiktok.com", "linkedin.com", "facebook.com",
}

var forumHosts = []string{
	"reddit.com", "news.ycombinator.com", "lobste.rs",
	"quora.com", "stackexchange.com", "discourse.org", "4chan.org",
}

// Classify maps a source URL onto a source type. Unknown hosts are treated
// as generic articles, which routes them through the fallback chain.
func Classify(rawURL string) models.SourceType {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return models.SourceTypeArticle
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return models.SourceTypeSocialPost
		}
	}
	for _, h := range forumHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return models.SourceTypeForum
		}
	}

	return models.SourceTypeArticle
}

// SearchTerm extracts an embedded search term from a source URL, if the URL
// encodes one (a "q" or "query" parameter). Returns empty when the URL
// identifies a page directly.
func SearchTerm(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	values := u.Query()
	if q := values.Get("q"); q != "" {
		return q
	}
	return values.Get("query")
}

// CountWords returns the number of whitespace-separated tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
