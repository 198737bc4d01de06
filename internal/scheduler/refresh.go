package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/detection"
	"github.com/driftline/driftline/internal/ingest"
	"github.com/driftline/driftline/internal/models"
)

// ProjectStore lists projects with their derived last-refresh time.
type ProjectStore interface {
	ListActive(ctx context.Context) ([]models.Project, error)
}

// Refresher runs one scrape cycle, optionally scoped to a project.
type Refresher interface {
	Run(ctx context.Context, filter ingest.Filter) (ingest.Summary, error)
}

// DetectionRunner runs the batched detection and momentum passes.
type DetectionRunner interface {
	DetectSignals(ctx context.Context, projectID string, lookbackHours int) (detection.DetectionSummary, error)
	AnalyzeMomentum(ctx context.Context, projectID string, lookbackHours int) (detection.MomentumSummary, error)
}

// RefreshScheduler periodically finds projects whose refresh interval has
// elapsed and runs the full pipeline for each: scrape, detection, momentum.
// Due-ness derives entirely from execution history in the store, so
// overlapping or restarted schedulers converge on the same answer.
type RefreshScheduler struct {
	projects      ProjectStore
	orchestrator  Refresher
	detection     DetectionRunner
	lookbackHours int
	checkInterval time.Duration
	logger        *slog.Logger
	stopChan      chan struct{}
	now           func() time.Time
}

// NewRefreshScheduler creates a refresh scheduler.
func NewRefreshScheduler(projects ProjectStore, orchestrator Refresher, detectionRunner DetectionRunner, checkInterval time.Duration, lookbackHours int, logger *slog.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		projects:      projects,
		orchestrator:  orchestrator,
		detection:     detectionRunner,
		lookbackHours: lookbackHours,
		checkInterval: checkInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// DueProjects returns the active projects whose refresh interval has elapsed
// since their last successful scrape. Never-refreshed projects are always
// due. Projects with an unsupported interval are skipped.
func (s *RefreshScheduler) DueProjects(ctx context.Context) ([]models.DueProject, error) {
	projects, err := s.projects.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	now := s.now()
	var due []models.DueProject

	for _, p := range projects {
		if !p.HasValidInterval() {
			s.logger.Warn("project has unsupported refresh interval, skipping",
				"project_id", p.ID, "interval_hours", p.RefreshIntervalHours)
			continue
		}

		if p.LastRefreshedAt == nil {
			due = append(due, models.DueProject{Project: p})
			continue
		}

		hours := now.Sub(*p.LastRefreshedAt).Hours()
		if p.IsDue(hours) {
			h := hours
			due = append(due, models.DueProject{Project: p, HoursSinceRefresh: &h})
		}
	}

	return due, nil
}

// RefreshSummary aggregates one scheduled refresh cycle across all due
// projects.
type RefreshSummary struct {
	ProjectsDue int                        `json:"projects_due"`
	Scrape      ingest.Summary             `json:"scrape"`
	Detection   detection.DetectionSummary `json:"detection"`
	Momentum    detection.MomentumSummary  `json:"momentum"`
}

// RunScheduledRefresh processes every due project: scrape its sources, then
// run the detection and momentum passes over the lookback window.
func (s *RefreshScheduler) RunScheduledRefresh(ctx context.Context) (RefreshSummary, error) {
	due, err := s.DueProjects(ctx)
	if err != nil {
		return RefreshSummary{}, err
	}

	summary := RefreshSummary{ProjectsDue: len(due)}
	if len(due) == 0 {
		s.logger.Debug("no projects due for refresh")
		return summary, nil
	}

	for _, d := range due {
		s.logger.Info("refreshing project",
			"project_id", d.Project.ID,
			"name", d.Project.Name,
			"interval_hours", d.Project.RefreshIntervalHours,
			"hours_since_refresh", d.HoursSinceRefresh)

		scrape, err := s.orchestrator.Run(ctx, ingest.Filter{ProjectID: d.Project.ID})
		summary.Scrape.Scraped += scrape.Scraped
		summary.Scrape.NewItems += scrape.NewItems
		summary.Scrape.Duplicates += scrape.Duplicates
		summary.Scrape.Failed += scrape.Failed
		if err != nil {
			return summary, fmt.Errorf("refresh of project %s failed: %w", d.Project.ID, err)
		}

		det, err := s.detection.DetectSignals(ctx, d.Project.ID, s.lookbackHours)
		summary.Detection.Examined += det.Examined
		summary.Detection.Analyzed += det.Analyzed
		summary.Detection.Failed += det.Failed
		summary.Detection.Signals += det.Signals
		if err != nil {
			return summary, fmt.Errorf("detection for project %s failed: %w", d.Project.ID, err)
		}

		mom, err := s.detection.AnalyzeMomentum(ctx, d.Project.ID, s.lookbackHours)
		summary.Momentum.SignalsExamined += mom.SignalsExamined
		summary.Momentum.Updated += mom.Updated
		summary.Momentum.EvidenceAdded += mom.EvidenceAdded
		if err != nil {
			return summary, fmt.Errorf("momentum analysis for project %s failed: %w", d.Project.ID, err)
		}
	}

	s.logger.Info("scheduled refresh complete",
		"projects_due", summary.ProjectsDue,
		"new_items", summary.Scrape.NewItems,
		"signals", summary.Detection.Signals,
		"momentum_updates", summary.Momentum.Updated)

	return summary, nil
}

// Start begins the scheduler loop. It runs one check immediately, then on
// every tick until Stop is called or the context is cancelled.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.logger.Info("starting refresh scheduler", "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("refresh scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopping, context cancelled")
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *RefreshScheduler) Stop() {
	close(s.stopChan)
}

func (s *RefreshScheduler) runOnce(ctx context.Context) {
	if _, err := s.RunScheduledRefresh(ctx); err != nil {
		s.logger.Error("scheduled refresh failed", "error", err)
	}
}
