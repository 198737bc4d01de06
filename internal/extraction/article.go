package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftline/driftline/internal/models"
)

// TierMinWords is the floor below which a tier result is treated as a
// failure for that URL rather than a success.
const TierMinWords = 100

// TierObserver counts extraction attempts per tier for observability.
type TierObserver interface {
	RecordExtraction(tier, outcome string)
}

// ArticleChain extracts generic/article sources through a three-tier
// fallback: the batch-capable primary service, the per-URL secondary
// service, then local in-process extraction. Tiers are ranked by cost;
// the first success wins.
type ArticleChain struct {
	primary   BatchExtractor
	secondary SingleExtractor
	local     SingleExtractor
	policy    RetryPolicy
	logger    *slog.Logger
	observer  TierObserver
}

// NewArticleChain creates the article fallback chain. The observer may be
// nil.
func NewArticleChain(primary BatchExtractor, secondary SingleExtractor, local SingleExtractor, policy RetryPolicy, logger *slog.Logger, observer TierObserver) *ArticleChain {
	return &ArticleChain{
		primary:   primary,
		secondary: secondary,
		local:     local,
		policy:    policy,
		logger:    logger,
		observer:  observer,
	}
}

// SourceType returns the source type this strategy handles.
func (c *ArticleChain) SourceType() models.SourceType {
	return models.SourceTypeArticle
}

// Extract runs the fallback chain for a single source.
func (c *ArticleChain) Extract(ctx context.Context, source models.Source) ([]ContentItem, error) {
	results := c.ExtractBatch(ctx, []models.Source{source})
	res := results[source.ID]
	return res.Items, res.Err
}

// ExtractBatch submits the sources' URLs to the primary tier in one call,
// then resolves each source individually against that batch result, falling
// through tiers 2 and 3 per source as needed. The caller is responsible for
// keeping batches within PrimaryBatchSize.
func (c *ArticleChain) ExtractBatch(ctx context.Context, sources []models.Source) map[string]Result {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}

	var batch map[string]TierResult
	var batchErr error

	if c.primary != nil {
		batchErr = Retry(ctx, c.policy, func() error {
			var err error
			batch, err = c.primary.ExtractBatch(ctx, urls)
			return err
		})
		if batchErr != nil {
			c.logger.Warn("primary batch extraction failed",
				"urls", len(urls),
				"error", batchErr)
		}
	} else {
		batchErr = fmt.Errorf("primary extraction service not configured")
	}

	out := make(map[string]Result, len(sources))
	for _, source := range sources {
		item, err := c.resolve(ctx, source, batch, batchErr)
		if err != nil {
			out[source.ID] = Result{Err: err}
			continue
		}
		out[source.ID] = Result{Items: []ContentItem{item}}
	}

	return out
}

func (c *ArticleChain) resolve(ctx context.Context, source models.Source, batch map[string]TierResult, batchErr error) (ContentItem, error) {
	var tierErrors []string

	// Tier 1: the batch result obtained for this source's URL.
	if msg := tierFailure(batch, batchErr, source.URL); msg != "" {
		tierErrors = append(tierErrors, "primary: "+msg)
		c.observe("primary", "failure")
	} else {
		c.observe("primary", "success")
		return c.item(batch[source.URL], models.ExtractionMethodPrimary), nil
	}

	// Tier 2: per-URL secondary service.
	if c.secondary == nil {
		tierErrors = append(tierErrors, "secondary: not configured")
	} else {
		var res TierResult
		err := Retry(ctx, c.policy, func() error {
			var err error
			res, err = c.secondary.ExtractURL(ctx, source.URL)
			return err
		})
		if msg := singleFailure(res, err); msg != "" {
			tierErrors = append(tierErrors, "secondary: "+msg)
			c.observe("secondary", "failure")
		} else {
			c.observe("secondary", "success")
			return c.item(res, models.ExtractionMethodSecondary), nil
		}
	}

	// Tier 3: local in-process extraction.
	if c.local == nil {
		tierErrors = append(tierErrors, "local-fallback: not configured")
	} else {
		res, err := c.local.ExtractURL(ctx, source.URL)
		if msg := singleFailure(res, err); msg != "" {
			tierErrors = append(tierErrors, "local-fallback: "+msg)
			c.observe("local-fallback", "failure")
		} else {
			c.observe("local-fallback", "success")
			return c.item(res, models.ExtractionMethodLocal), nil
		}
	}

	return ContentItem{}, fmt.Errorf("all extraction tiers failed: %s", strings.Join(tierErrors, "; "))
}

// tierFailure returns a non-empty failure message when the batch result for
// a URL is unusable.
func tierFailure(batch map[string]TierResult, batchErr error, url string) string {
	if batchErr != nil {
		return batchErr.Error()
	}

	res, ok := batch[url]
	if !ok {
		return "no result returned for url"
	}
	if !res.Success {
		if res.Error != "" {
			return res.Error
		}
		return "extraction failed"
	}
	if wc := resultWords(res); wc < TierMinWords {
		return fmt.Sprintf("only %d words extracted", wc)
	}

	return ""
}

// singleFailure returns a non-empty failure message when a per-URL tier
// result is unusable.
func singleFailure(res TierResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if !res.Success {
		if res.Error != "" {
			return res.Error
		}
		return "extraction failed"
	}
	if wc := resultWords(res); wc < TierMinWords {
		return fmt.Sprintf("only %d words extracted", wc)
	}

	return ""
}

func (c *ArticleChain) item(res TierResult, method models.ExtractionMethod) ContentItem {
	return ContentItem{
		Content:   res.Content,
		ItemURL:   res.URL,
		WordCount: resultWords(res),
		Method:    method,
	}
}

func (c *ArticleChain) observe(tier, outcome string) {
	if c.observer != nil {
		c.observer.RecordExtraction(tier, outcome)
	}
}

func resultWords(res TierResult) int {
	if res.WordCount > 0 {
		return res.WordCount
	}
	return CountWords(res.Content)
}
