package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/driftline/driftline/internal/detection"
	"github.com/driftline/driftline/internal/ingest"
	"github.com/driftline/driftline/internal/models"
)

type stubProjects struct {
	projects []models.Project
}

func (s *stubProjects) ListActive(ctx context.Context) ([]models.Project, error) {
	return s.projects, nil
}

type stubRefresher struct {
	filters []ingest.Filter
	summary ingest.Summary
}

func (s *stubRefresher) Run(ctx context.Context, filter ingest.Filter) (ingest.Summary, error) {
	s.filters = append(s.filters, filter)
	return s.summary, nil
}

type stubDetection struct {
	detectCalls   []string
	momentumCalls []string
	detect        detection.DetectionSummary
	momentum      detection.MomentumSummary
}

func (s *stubDetection) DetectSignals(ctx context.Context, projectID string, lookbackHours int) (detection.DetectionSummary, error) {
	s.detectCalls = append(s.detectCalls, projectID)
	return s.detect, nil
}

func (s *stubDetection) AnalyzeMomentum(ctx context.Context, projectID string, lookbackHours int) (detection.MomentumSummary, error) {
	s.momentumCalls = append(s.momentumCalls, projectID)
	return s.momentum, nil
}

func hoursAgo(h float64) *time.Time {
	t := time.Now().Add(-time.Duration(h * float64(time.Hour)))
	return &t
}

func project(id string, interval int, lastRefreshed *time.Time) models.Project {
	return models.Project{
		ID:                   id,
		Name:                 "project " + id,
		Active:               true,
		RefreshIntervalHours: interval,
		LastRefreshedAt:      lastRefreshed,
	}
}

func newTestScheduler(projects *stubProjects, refresher *stubRefresher, det *stubDetection) *RefreshScheduler {
	return NewRefreshScheduler(projects, refresher, det, time.Minute, 24, slog.Default())
}

func TestDueProjects(t *testing.T) {
	projects := &stubProjects{projects: []models.Project{
		project("never", 4, nil),         // never refreshed: always due
		project("overdue", 4, hoursAgo(5)), // 5h ago with 4h interval: due
		project("fresh", 4, hoursAgo(3)),   // 3h ago with 4h interval: not due
		project("exact", 2, hoursAgo(2)),   // exactly at interval: due
		project("bogus", 7, nil),           // unsupported interval: skipped
	}}

	s := newTestScheduler(projects, &stubRefresher{}, &stubDetection{})

	due, err := s.DueProjects(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make(map[string]models.DueProject, len(due))
	for _, d := range due {
		ids[d.Project.ID] = d
	}

	for _, want := range []string{"never", "overdue", "exact"} {
		if _, ok := ids[want]; !ok {
			t.Errorf("project %s should be due", want)
		}
	}
	for _, skip := range []string{"fresh", "bogus"} {
		if _, ok := ids[skip]; ok {
			t.Errorf("project %s should not be due", skip)
		}
	}

	if ids["never"].HoursSinceRefresh != nil {
		t.Error("never-refreshed project should have nil hours")
	}
	if h := ids["overdue"].HoursSinceRefresh; h == nil || *h < 4.9 || *h > 5.1 {
		t.Errorf("unexpected hours since refresh: %v", h)
	}
}

func TestRunScheduledRefresh(t *testing.T) {
	projects := &stubProjects{projects: []models.Project{
		project("p1", 4, nil),
		project("p2", 4, hoursAgo(6)),
		project("p3", 4, hoursAgo(1)), // not due
	}}
	refresher := &stubRefresher{summary: ingest.Summary{Scraped: 2, NewItems: 1}}
	det := &stubDetection{
		detect:   detection.DetectionSummary{Examined: 1, Analyzed: 1, Signals: 1},
		momentum: detection.MomentumSummary{SignalsExamined: 1, Updated: 1},
	}

	s := newTestScheduler(projects, refresher, det)

	summary, err := s.RunScheduledRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ProjectsDue != 2 {
		t.Errorf("expected 2 due projects, got %d", summary.ProjectsDue)
	}
	if len(refresher.filters) != 2 {
		t.Fatalf("expected 2 scrape runs, got %d", len(refresher.filters))
	}
	for _, f := range refresher.filters {
		if f.ProjectID == "" || f.SourceID != "" {
			t.Errorf("scrape should be scoped to a project: %+v", f)
		}
	}
	if len(det.detectCalls) != 2 || len(det.momentumCalls) != 2 {
		t.Errorf("detection and momentum should run per due project: %d/%d",
			len(det.detectCalls), len(det.momentumCalls))
	}

	if summary.Scrape.NewItems != 2 || summary.Detection.Signals != 2 || summary.Momentum.Updated != 2 {
		t.Errorf("counts not aggregated across projects: %+v", summary)
	}
}

func TestRunScheduledRefreshNothingDue(t *testing.T) {
	projects := &stubProjects{projects: []models.Project{project("p1", 12, hoursAgo(1))}}
	refresher := &stubRefresher{}

	s := newTestScheduler(projects, refresher, &stubDetection{})

	summary, err := s.RunScheduledRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ProjectsDue != 0 || len(refresher.filters) != 0 {
		t.Errorf("nothing should run: %+v", summary)
	}
}

func TestSchedulerStop(t *testing.T) {
	projects := &stubProjects{}
	s := newTestScheduler(projects, &stubRefresher{}, &stubDetection{})

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
