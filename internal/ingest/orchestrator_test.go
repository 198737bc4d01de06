package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/driftline/driftline/internal/extraction"
	"github.com/driftline/driftline/internal/models"
)

type memSources struct {
	sources []models.Source
	updated map[string]time.Time
}

func (m *memSources) ListActive(ctx context.Context) ([]models.Source, error) {
	var out []models.Source
	for _, s := range m.sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSources) ListActiveByProject(ctx context.Context, projectID string) ([]models.Source, error) {
	var out []models.Source
	for _, s := range m.sources {
		if s.Active && s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSources) GetByID(ctx context.Context, id string) (*models.Source, error) {
	for _, s := range m.sources {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memSources) UpdateLastScraped(ctx context.Context, id string, scrapedAt time.Time) error {
	if m.updated == nil {
		m.updated = make(map[string]time.Time)
	}
	m.updated[id] = scrapedAt
	return nil
}

type memIngestions struct {
	hashes   map[string]bool
	inserted []*models.RawIngestion
	err      error
}

func (m *memIngestions) Insert(ctx context.Context, ing *models.RawIngestion) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.hashes == nil {
		m.hashes = make(map[string]bool)
	}
	if m.hashes[ing.ContentHash] {
		return false, nil
	}
	m.hashes[ing.ContentHash] = true
	ing.ID = fmt.Sprintf("ing-%d", len(m.inserted)+1)
	m.inserted = append(m.inserted, ing)
	return true, nil
}

type finalizedRun struct {
	status    models.ExecutionStatus
	found     int
	processed int
	errMsg    string
}

type memRuns struct {
	started   []*models.ExecutionLog
	finalized map[string]finalizedRun
}

func (m *memRuns) Start(ctx context.Context, sourceID, projectID string) (*models.ExecutionLog, error) {
	run := &models.ExecutionLog{
		ID:        fmt.Sprintf("run-%d", len(m.started)+1),
		SourceID:  sourceID,
		ProjectID: projectID,
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now(),
	}
	m.started = append(m.started, run)
	return run, nil
}

func (m *memRuns) Finalize(ctx context.Context, id string, status models.ExecutionStatus, itemsFound, itemsProcessed int, errMsg string, duration time.Duration) error {
	if m.finalized == nil {
		m.finalized = make(map[string]finalizedRun)
	}
	if _, ok := m.finalized[id]; ok {
		return fmt.Errorf("execution log %s is not running", id)
	}
	m.finalized[id] = finalizedRun{status: status, found: itemsFound, processed: itemsProcessed, errMsg: errMsg}
	return nil
}

type stubStrategy struct {
	typ   models.SourceType
	items []extraction.ContentItem
	err   error
}

func (s *stubStrategy) SourceType() models.SourceType { return s.typ }

func (s *stubStrategy) Extract(ctx context.Context, source models.Source) ([]extraction.ContentItem, error) {
	return s.items, s.err
}

type stubArticles struct {
	calls   int
	results map[string]extraction.Result
}

func (s *stubArticles) ExtractBatch(ctx context.Context, sources []models.Source) map[string]extraction.Result {
	s.calls++
	out := make(map[string]extraction.Result, len(sources))
	for _, src := range sources {
		out[src.ID] = s.results[src.ID]
	}
	return out
}

type stubAnalyzer struct {
	analyzed []string
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, ing *models.RawIngestion) error {
	s.analyzed = append(s.analyzed, ing.ID)
	return s.err
}

func longText(seed string) string {
	return strings.TrimSpace(strings.Repeat(seed+" ", 120))
}

func forumSource(id string) models.Source {
	return models.Source{ID: id, ProjectID: "proj-1", URL: "https://reddit.com/r/acme", Type: models.SourceTypeForum, Active: true}
}

func newTestOrchestrator(sources *memSources, ingestions *memIngestions, runs *memRuns, strategies []extraction.Strategy, articles ArticleExtractor, analyzer Analyzer) *Orchestrator {
	return NewOrchestrator(OrchestratorParams{
		Sources:    sources,
		Ingestions: ingestions,
		Runs:       runs,
		Strategies: strategies,
		Articles:   articles,
		Analyzer:   analyzer,
		Logger:     slog.Default(),
	})
}

func TestRun_StoresNewAndSkipsDuplicates(t *testing.T) {
	sources := &memSources{sources: []models.Source{forumSource("src-1")}}
	ingestions := &memIngestions{}
	runs := &memRuns{}
	analyzer := &stubAnalyzer{}

	strategy := &stubStrategy{typ: models.SourceTypeForum, items: []extraction.ContentItem{
		{Content: longText("alpha"), ItemURL: "https://reddit.com/r/acme/1", Method: models.ExtractionMethodPrimary},
		{Content: longText("alpha"), ItemURL: "https://reddit.com/r/acme/2", Method: models.ExtractionMethodPrimary},
		{Content: longText("beta"), ItemURL: "https://reddit.com/r/acme/3", Method: models.ExtractionMethodPrimary},
	}}

	o := newTestOrchestrator(sources, ingestions, runs, []extraction.Strategy{strategy}, nil, analyzer)

	summary, err := o.Run(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Scraped != 1 || summary.NewItems != 2 || summary.Duplicates != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(ingestions.inserted) != 2 {
		t.Fatalf("expected 2 stored ingestions, got %d", len(ingestions.inserted))
	}
	if ingestions.inserted[0].Status != models.IngestionStatusPending {
		t.Errorf("stored ingestion should be pending_analysis, got %s", ingestions.inserted[0].Status)
	}
	if len(analyzer.analyzed) != 2 {
		t.Errorf("expected detection on the 2 new items, got %d", len(analyzer.analyzed))
	}

	run := runs.finalized["run-1"]
	if run.status != models.ExecutionStatusSuccess {
		t.Errorf("expected success log, got %s", run.status)
	}
	if run.found != 3 || run.processed != 3 {
		t.Errorf("expected found=3 processed=3, got found=%d processed=%d", run.found, run.processed)
	}
	if _, ok := sources.updated["src-1"]; !ok {
		t.Error("last_scraped_at not advanced")
	}
}

func TestRun_WordCountFloorDropsNoise(t *testing.T) {
	sources := &memSources{sources: []models.Source{forumSource("src-1")}}
	ingestions := &memIngestions{}
	runs := &memRuns{}

	strategy := &stubStrategy{typ: models.SourceTypeForum, items: []extraction.ContentItem{
		{Content: "too short to matter"},
		// Exactly 100 words sits on the floor and is still noise.
		{Content: strings.TrimSpace(strings.Repeat("boundary ", 100))},
		{Content: longText("gamma")},
	}}

	o := newTestOrchestrator(sources, ingestions, runs, []extraction.Strategy{strategy}, nil, nil)

	summary, err := o.Run(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.NewItems != 1 || summary.Duplicates != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	run := runs.finalized["run-1"]
	if run.found != 3 || run.processed != 1 {
		t.Errorf("noise items should count as found but not processed: found=%d processed=%d", run.found, run.processed)
	}
}

func TestRun_ExtractionFailureFinalizesFailedLog(t *testing.T) {
	sources := &memSources{sources: []models.Source{forumSource("src-1")}}
	ingestions := &memIngestions{}
	runs := &memRuns{}

	strategy := &stubStrategy{typ: models.SourceTypeForum, err: errors.New("platform unreachable")}

	o := newTestOrchestrator(sources, ingestions, runs, []extraction.Strategy{strategy}, nil, nil)

	summary, err := o.Run(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("per-source extraction failure must not abort the run: %v", err)
	}

	if summary.Failed != 1 || summary.NewItems != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	run := runs.finalized["run-1"]
	if run.status != models.ExecutionStatusFailed {
		t.Errorf("expected failed log, got %s", run.status)
	}
	if run.errMsg != "platform unreachable" {
		t.Errorf("expected error message on log, got %q", run.errMsg)
	}
	if run.found != 0 || run.processed != 0 {
		t.Errorf("failed run should record zero items, got found=%d processed=%d", run.found, run.processed)
	}
}

func TestRun_ArticlesShareOneBatchCall(t *testing.T) {
	var srcs []models.Source
	results := make(map[string]extraction.Result)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("src-%d", i)
		srcs = append(srcs, models.Source{
			ID: id, ProjectID: "proj-1",
			URL:  fmt.Sprintf("https://example.com/story-%d", i),
			Type: models.SourceTypeArticle, Active: true,
		})
		results[id] = extraction.Result{Items: []extraction.ContentItem{
			{Content: longText(id), Method: models.ExtractionMethodPrimary},
		}}
	}

	sources := &memSources{sources: srcs}
	ingestions := &memIngestions{}
	runs := &memRuns{}
	articles := &stubArticles{results: results}

	o := newTestOrchestrator(sources, ingestions, runs, nil, articles, nil)

	summary, err := o.Run(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if articles.calls != 1 {
		t.Errorf("expected 1 batch call for 3 articles, got %d", articles.calls)
	}
	if summary.Scraped != 3 || summary.NewItems != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(runs.started) != 3 {
		t.Errorf("expected one execution log per source, got %d", len(runs.started))
	}
	for _, run := range runs.started {
		if runs.finalized[run.ID].status != models.ExecutionStatusSuccess {
			t.Errorf("log %s not finalized successfully", run.ID)
		}
	}
}

func TestRun_SourceFilter(t *testing.T) {
	active := forumSource("src-1")
	inactive := forumSource("src-2")
	inactive.Active = false

	sources := &memSources{sources: []models.Source{active, inactive}}
	strategy := &stubStrategy{typ: models.SourceTypeForum, items: []extraction.ContentItem{{Content: longText("delta")}}}

	o := newTestOrchestrator(sources, &memIngestions{}, &memRuns{}, []extraction.Strategy{strategy}, nil, nil)

	summary, err := o.Run(context.Background(), Filter{SourceID: "src-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Scraped != 1 {
		t.Errorf("expected exactly the filtered source, got %+v", summary)
	}

	if _, err := o.Run(context.Background(), Filter{SourceID: "src-2"}); err == nil {
		t.Error("expected error for inactive source")
	}
	if _, err := o.Run(context.Background(), Filter{SourceID: "missing"}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRun_DetectionFailureDoesNotBlockSiblings(t *testing.T) {
	sources := &memSources{sources: []models.Source{forumSource("src-1")}}
	ingestions := &memIngestions{}
	runs := &memRuns{}
	analyzer := &stubAnalyzer{err: errors.New("model unavailable")}

	strategy := &stubStrategy{typ: models.SourceTypeForum, items: []extraction.ContentItem{
		{Content: longText("epsilon")},
		{Content: longText("zeta")},
	}}

	o := newTestOrchestrator(sources, ingestions, runs, []extraction.Strategy{strategy}, nil, analyzer)

	summary, err := o.Run(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.NewItems != 2 {
		t.Errorf("both items should be stored despite detection errors: %+v", summary)
	}
	if len(analyzer.analyzed) != 2 {
		t.Errorf("detection should be attempted for every new item, got %d", len(analyzer.analyzed))
	}
	if runs.finalized["run-1"].status != models.ExecutionStatusSuccess {
		t.Error("detection errors must not fail the execution log")
	}
}

func TestRun_StorageFailureAborts(t *testing.T) {
	sources := &memSources{sources: []models.Source{forumSource("src-1")}}
	ingestions := &memIngestions{err: errors.New("connection refused")}
	runs := &memRuns{}

	strategy := &stubStrategy{typ: models.SourceTypeForum, items: []extraction.ContentItem{{Content: longText("eta")}}}

	o := newTestOrchestrator(sources, ingestions, runs, []extraction.Strategy{strategy}, nil, nil)

	if _, err := o.Run(context.Background(), Filter{}); err == nil {
		t.Fatal("expected storage failure to propagate")
	}
	if runs.finalized["run-1"].status != models.ExecutionStatusFailed {
		t.Error("execution log should be finalized failed before aborting")
	}
}
