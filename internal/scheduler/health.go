package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/models"
)

// RunHistory reads execution history for health classification.
type RunHistory interface {
	LastRun(ctx context.Context) (*models.ExecutionLog, error)
	LastSuccess(ctx context.Context) (*time.Time, error)
}

// StuckLister surfaces ingestions stuck in pending_analysis.
type StuckLister interface {
	ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]models.RawIngestion, error)
}

// HealthState classifies overall pipeline health.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// Health is the pipeline health view: the classification plus the evidence
// it was derived from.
type Health struct {
	State           HealthState `json:"state"`
	LastRunAt       *time.Time  `json:"last_run_at,omitempty"`
	LastRunStatus   string      `json:"last_run_status,omitempty"`
	LastSuccessAt   *time.Time  `json:"last_success_at,omitempty"`
	StuckIngestions int         `json:"stuck_ingestions"`
}

// HealthChecker classifies pipeline health from execution history:
// unhealthy when no run was ever recorded, degraded when the latest run
// failed or no success landed within twice the shortest configured refresh
// interval, healthy otherwise.
type HealthChecker struct {
	projects       ProjectStore
	history        RunHistory
	stuck          StuckLister
	stuckThreshold time.Duration
	now            func() time.Time
}

// NewHealthChecker creates a health checker. The stuck lister may be nil.
func NewHealthChecker(projects ProjectStore, history RunHistory, stuck StuckLister, stuckThreshold time.Duration) *HealthChecker {
	return &HealthChecker{
		projects:       projects,
		history:        history,
		stuck:          stuck,
		stuckThreshold: stuckThreshold,
		now:            time.Now,
	}
}

// Check computes the current health view.
func (h *HealthChecker) Check(ctx context.Context) (Health, error) {
	last, err := h.history.LastRun(ctx)
	if err != nil {
		return Health{}, fmt.Errorf("failed to read last run: %w", err)
	}

	health := Health{State: HealthStateUnhealthy}
	if last != nil {
		health.LastRunAt = last.CompletedAt
		health.LastRunStatus = string(last.Status)

		lastSuccess, err := h.history.LastSuccess(ctx)
		if err != nil {
			return Health{}, fmt.Errorf("failed to read last success: %w", err)
		}
		health.LastSuccessAt = lastSuccess

		health.State = h.classify(ctx, last, lastSuccess)
	}

	if h.stuck != nil {
		stuck, err := h.stuck.ListStuck(ctx, h.now().Add(-h.stuckThreshold), 0)
		if err != nil {
			return Health{}, fmt.Errorf("failed to list stuck ingestions: %w", err)
		}
		health.StuckIngestions = len(stuck)
	}

	return health, nil
}

func (h *HealthChecker) classify(ctx context.Context, last *models.ExecutionLog, lastSuccess *time.Time) HealthState {
	if last.Status == models.ExecutionStatusFailed {
		return HealthStateDegraded
	}

	threshold := 2 * h.shortestInterval(ctx)
	if lastSuccess == nil || h.now().Sub(*lastSuccess) > threshold {
		return HealthStateDegraded
	}

	return HealthStateHealthy
}

// shortestInterval returns the smallest refresh interval among active
// projects, falling back to the smallest supported interval when no project
// is configured.
func (h *HealthChecker) shortestInterval(ctx context.Context) time.Duration {
	shortest := models.ValidRefreshIntervals[0]

	projects, err := h.projects.ListActive(ctx)
	if err != nil || len(projects) == 0 {
		return time.Duration(shortest) * time.Hour
	}

	found := 0
	for _, p := range projects {
		if !p.HasValidInterval() {
			continue
		}
		if found == 0 || p.RefreshIntervalHours < found {
			found = p.RefreshIntervalHours
		}
	}
	if found > 0 {
		shortest = found
	}

	return time.Duration(shortest) * time.Hour
}
