package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/driftline/driftline/internal/detection"
	"github.com/driftline/driftline/internal/ingest"
	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/scheduler"
)

type stubScraper struct {
	filter  ingest.Filter
	summary ingest.Summary
	err     error
}

func (s *stubScraper) Run(ctx context.Context, filter ingest.Filter) (ingest.Summary, error) {
	s.filter = filter
	return s.summary, s.err
}

type stubRefresher struct {
	summary scheduler.RefreshSummary
	err     error
}

func (s *stubRefresher) RunScheduledRefresh(ctx context.Context) (scheduler.RefreshSummary, error) {
	return s.summary, s.err
}

type stubDetection struct {
	projectID string
	lookback  int
	detect    detection.DetectionSummary
	momentum  detection.MomentumSummary
}

func (s *stubDetection) DetectSignals(ctx context.Context, projectID string, lookbackHours int) (detection.DetectionSummary, error) {
	s.projectID = projectID
	s.lookback = lookbackHours
	return s.detect, nil
}

func (s *stubDetection) AnalyzeMomentum(ctx context.Context, projectID string, lookbackHours int) (detection.MomentumSummary, error) {
	s.projectID = projectID
	s.lookback = lookbackHours
	return s.momentum, nil
}

type stubHealth struct {
	health scheduler.Health
}

func (s *stubHealth) Check(ctx context.Context) (scheduler.Health, error) {
	return s.health, nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) PingContext(ctx context.Context) error { return s.err }

func newTestHandler(scraper *stubScraper, refresher *stubRefresher, det *stubDetection) *Handler {
	return NewHandler(scraper, refresher, det,
		&stubHealth{health: scheduler.Health{State: scheduler.HealthStateHealthy}},
		&stubPinger{}, 24, slog.Default())
}

func TestScrapeHandler(t *testing.T) {
	scraper := &stubScraper{summary: ingest.Summary{Scraped: 3, NewItems: 2, Duplicates: 1}}
	h := newTestHandler(scraper, &stubRefresher{}, &stubDetection{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape",
		strings.NewReader(`{"source_id": "src-1"}`))
	rec := httptest.NewRecorder()

	h.ScrapeHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if scraper.filter.SourceID != "src-1" {
		t.Errorf("filter not forwarded: %+v", scraper.filter)
	}

	var summary ingest.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if summary.NewItems != 2 || summary.Duplicates != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestScrapeHandlerEmptyBody(t *testing.T) {
	scraper := &stubScraper{}
	h := newTestHandler(scraper, &stubRefresher{}, &stubDetection{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", nil)
	rec := httptest.NewRecorder()

	h.ScrapeHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", rec.Code)
	}
	if scraper.filter != (ingest.Filter{}) {
		t.Errorf("empty body should scrape everything: %+v", scraper.filter)
	}
}

func TestScrapeHandlerInfrastructureError(t *testing.T) {
	scraper := &stubScraper{err: errors.New("failed to store ingestion: connection refused")}
	h := newTestHandler(scraper, &stubRefresher{}, &stubDetection{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", nil)
	rec := httptest.NewRecorder()

	h.ScrapeHandler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for infrastructure failure, got %d", rec.Code)
	}
}

func TestScrapeHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandler(&stubScraper{}, &stubRefresher{}, &stubDetection{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scrape", nil)
	rec := httptest.NewRecorder()

	h.ScrapeHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestDetectHandler(t *testing.T) {
	det := &stubDetection{detect: detection.DetectionSummary{Examined: 5, Analyzed: 4, Failed: 1, Signals: 2}}
	h := newTestHandler(&stubScraper{}, &stubRefresher{}, det)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect",
		strings.NewReader(`{"project_id": "proj-1", "lookback_hours": 6}`))
	rec := httptest.NewRecorder()

	h.DetectHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if det.projectID != "proj-1" || det.lookback != 6 {
		t.Errorf("request not forwarded: %s/%d", det.projectID, det.lookback)
	}
}

func TestDetectHandlerRequiresProject(t *testing.T) {
	h := newTestHandler(&stubScraper{}, &stubRefresher{}, &stubDetection{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.DetectHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without project_id, got %d", rec.Code)
	}
}

func TestMomentumHandlerDefaultsLookback(t *testing.T) {
	det := &stubDetection{}
	h := newTestHandler(&stubScraper{}, &stubRefresher{}, det)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/momentum",
		strings.NewReader(`{"project_id": "proj-1"}`))
	rec := httptest.NewRecorder()

	h.MomentumHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if det.lookback != 24 {
		t.Errorf("expected default lookback 24, got %d", det.lookback)
	}
}

func TestHealthzReportsDatabaseOutage(t *testing.T) {
	h := NewHandler(&stubScraper{}, &stubRefresher{}, &stubDetection{},
		&stubHealth{}, &stubPinger{err: errors.New("refused")}, 24, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.HealthzHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRouterRoutes(t *testing.T) {
	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatal(err)
	}

	h := newTestHandler(&stubScraper{}, &stubRefresher{}, &stubDetection{})
	router := NewRouter(h, collector)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/pipeline/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("pipeline health: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", resp.StatusCode)
	}
}
