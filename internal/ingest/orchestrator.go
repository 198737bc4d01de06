package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/extraction"
	"github.com/driftline/driftline/internal/models"
)

// SourceStore is the subset of source storage the orchestrator needs.
type SourceStore interface {
	ListActive(ctx context.Context) ([]models.Source, error)
	ListActiveByProject(ctx context.Context, projectID string) ([]models.Source, error)
	GetByID(ctx context.Context, id string) (*models.Source, error)
	UpdateLastScraped(ctx context.Context, id string, scrapedAt time.Time) error
}

// IngestionStore persists deduplicated content.
type IngestionStore interface {
	Insert(ctx context.Context, ing *models.RawIngestion) (bool, error)
}

// RunLog records per-source scrape attempts.
type RunLog interface {
	Start(ctx context.Context, sourceID, projectID string) (*models.ExecutionLog, error)
	Finalize(ctx context.Context, id string, status models.ExecutionStatus, itemsFound, itemsProcessed int, errMsg string, duration time.Duration) error
}

// Analyzer runs signal detection on a freshly stored ingestion and settles
// its analysis status. Implementations absorb model-output problems into the
// ingestion's status; only infrastructure failures surface as errors here.
type Analyzer interface {
	Analyze(ctx context.Context, ing *models.RawIngestion) error
}

// ArticleExtractor is the batch-capable fallback chain for article sources.
type ArticleExtractor interface {
	ExtractBatch(ctx context.Context, sources []models.Source) map[string]extraction.Result
}

// Observer counts pipeline outcomes for observability.
type Observer interface {
	RecordIngested(sourceType string)
	RecordDuplicate(sourceType string)
}

// Filter narrows a run to one source or one project. Zero value means all
// active sources.
type Filter struct {
	SourceID  string
	ProjectID string
}

// Summary aggregates the outcome of one run.
type Summary struct {
	Scraped    int `json:"scraped"`
	NewItems   int `json:"new_items"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Orchestrator drives a full fetch cycle: load sources, extract per source
// type, deduplicate, store, and hand new content to signal detection. Each
// source gets its own execution log row regardless of outcome.
type Orchestrator struct {
	sources    SourceStore
	ingestions IngestionStore
	runs       RunLog
	strategies map[models.SourceType]extraction.Strategy
	articles   ArticleExtractor
	analyzer   Analyzer
	cache      *HashCache
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// OrchestratorParams collects the orchestrator's dependencies. Analyzer,
// Cache, and Observer are optional.
type OrchestratorParams struct {
	Sources    SourceStore
	Ingestions IngestionStore
	Runs       RunLog
	Strategies []extraction.Strategy
	Articles   ArticleExtractor
	Analyzer   Analyzer
	Cache      *HashCache
	Observer   Observer
	Logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	strategies := make(map[models.SourceType]extraction.Strategy, len(p.Strategies))
	for _, s := range p.Strategies {
		strategies[s.SourceType()] = s
	}

	return &Orchestrator{
		sources:    p.Sources,
		ingestions: p.Ingestions,
		runs:       p.Runs,
		strategies: strategies,
		articles:   p.Articles,
		analyzer:   p.Analyzer,
		cache:      p.Cache,
		observer:   p.Observer,
		logger:     p.Logger,
		now:        time.Now,
	}
}

// Run executes one fetch cycle and returns aggregate counts. Per-source
// extraction failures are recorded in that source's execution log and do not
// abort the cycle; storage failures do.
func (o *Orchestrator) Run(ctx context.Context, filter Filter) (Summary, error) {
	sources, err := o.loadSources(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	if len(sources) == 0 {
		o.logger.Info("no active sources to scrape")
		return Summary{}, nil
	}

	var summary Summary
	var articles []models.Source

	for _, source := range sources {
		if source.Type == models.SourceTypeArticle {
			articles = append(articles, source)
			continue
		}
		if err := o.scrapeOne(ctx, source, &summary); err != nil {
			return summary, err
		}
	}

	// Articles run in chunks so one primary-tier call covers many sources.
	for start := 0; start < len(articles); start += extraction.PrimaryBatchSize {
		end := min(start+extraction.PrimaryBatchSize, len(articles))
		if err := o.scrapeArticleChunk(ctx, articles[start:end], &summary); err != nil {
			return summary, err
		}
	}

	o.logger.Info("scrape run complete",
		"scraped", summary.Scraped,
		"new_items", summary.NewItems,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed)

	return summary, nil
}

func (o *Orchestrator) loadSources(ctx context.Context, filter Filter) ([]models.Source, error) {
	if filter.SourceID != "" {
		source, err := o.sources.GetByID(ctx, filter.SourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source: %w", err)
		}
		if source == nil {
			return nil, fmt.Errorf("source %s not found", filter.SourceID)
		}
		if !source.Active {
			return nil, fmt.Errorf("source %s is inactive", filter.SourceID)
		}
		return []models.Source{*source}, nil
	}

	if filter.ProjectID != "" {
		sources, err := o.sources.ListActiveByProject(ctx, filter.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project sources: %w", err)
		}
		return sources, nil
	}

	sources, err := o.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	return sources, nil
}

// scrapeOne handles a social or forum source through its per-type strategy.
func (o *Orchestrator) scrapeOne(ctx context.Context, source models.Source, summary *Summary) error {
	strategy, ok := o.strategies[source.Type]
	if !ok {
		o.logger.Warn("no strategy for source type, skipping",
			"source_id", source.ID, "type", source.Type)
		return nil
	}

	run, err := o.runs.Start(ctx, source.ID, source.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to start execution log: %w", err)
	}

	items, extractErr := strategy.Extract(ctx, source)
	return o.settle(ctx, source, run, items, extractErr, summary)
}

// scrapeArticleChunk starts a log per source, runs one batch extraction for
// the whole chunk, then settles each source against its share of the result.
func (o *Orchestrator) scrapeArticleChunk(ctx context.Context, chunk []models.Source, summary *Summary) error {
	if o.articles == nil {
		o.logger.Warn("article extraction not configured, skipping", "sources", len(chunk))
		return nil
	}

	runs := make(map[string]*models.ExecutionLog, len(chunk))
	for _, source := range chunk {
		run, err := o.runs.Start(ctx, source.ID, source.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to start execution log: %w", err)
		}
		runs[source.ID] = run
	}

	results := o.articles.ExtractBatch(ctx, chunk)

	for _, source := range chunk {
		res := results[source.ID]
		if err := o.settle(ctx, source, runs[source.ID], res.Items, res.Err, summary); err != nil {
			return err
		}
	}

	return nil
}

// settle applies the post-extraction steps for one source: store each item
// through dedup, run detection on new content, advance the source timestamp,
// and finalize the execution log.
func (o *Orchestrator) settle(ctx context.Context, source models.Source, run *models.ExecutionLog, items []extraction.ContentItem, extractErr error, summary *Summary) error {
	summary.Scraped++

	if extractErr != nil {
		summary.Failed++
		o.logger.Warn("extraction failed",
			"source_id", source.ID, "url", source.URL, "error", extractErr)

		if err := o.runs.Finalize(ctx, run.ID, models.ExecutionStatusFailed, 0, 0, extractErr.Error(), time.Since(run.StartedAt)); err != nil {
			return fmt.Errorf("failed to finalize execution log: %w", err)
		}
		return nil
	}

	found := len(items)
	processed := 0

	for _, item := range items {
		wordCount := item.WordCount
		if wordCount == 0 {
			wordCount = extraction.CountWords(item.Content)
		}
		// At or below the floor the item is noise: not stored, not counted.
		if wordCount <= models.MinWordCount {
			continue
		}

		hash := ComputeContentHash(item.Content)
		if o.cache.Seen(ctx, hash) {
			summary.Duplicates++
			processed++
			o.recordDuplicate(source.Type)
			continue
		}

		ing := &models.RawIngestion{
			SourceID:    source.ID,
			ProjectID:   source.ProjectID,
			Content:     item.Content,
			ContentHash: hash,
			ItemURL:     item.ItemURL,
			WordCount:   wordCount,
			Method:      item.Method,
			Status:      models.IngestionStatusPending,
			ScrapedAt:   o.now(),
			Metadata:    item.Metadata,
		}

		inserted, err := o.ingestions.Insert(ctx, ing)
		if err != nil {
			if ferr := o.runs.Finalize(ctx, run.ID, models.ExecutionStatusFailed, found, processed, err.Error(), time.Since(run.StartedAt)); ferr != nil {
				o.logger.Warn("failed to finalize execution log", "log_id", run.ID, "error", ferr)
			}
			return fmt.Errorf("failed to store ingestion for source %s: %w", source.ID, err)
		}

		processed++
		o.cache.Mark(ctx, hash)

		if !inserted {
			summary.Duplicates++
			o.recordDuplicate(source.Type)
			continue
		}

		summary.NewItems++
		o.recordIngested(source.Type)

		if o.analyzer != nil {
			if err := o.analyzer.Analyze(ctx, ing); err != nil {
				// One item's detection trouble never blocks its siblings.
				o.logger.Warn("signal detection failed",
					"ingestion_id", ing.ID, "source_id", source.ID, "error", err)
			}
		}
	}

	if err := o.sources.UpdateLastScraped(ctx, source.ID, o.now()); err != nil {
		o.logger.Warn("failed to update last_scraped_at", "source_id", source.ID, "error", err)
	}

	if err := o.runs.Finalize(ctx, run.ID, models.ExecutionStatusSuccess, found, processed, "", time.Since(run.StartedAt)); err != nil {
		return fmt.Errorf("failed to finalize execution log: %w", err)
	}

	return nil
}

func (o *Orchestrator) recordIngested(sourceType models.SourceType) {
	if o.observer != nil {
		o.observer.RecordIngested(string(sourceType))
	}
}

func (o *Orchestrator) recordDuplicate(sourceType models.SourceType) {
	if o.observer != nil {
		o.observer.RecordDuplicate(string(sourceType))
	}
}
