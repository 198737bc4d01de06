package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/driftline/driftline/internal/detection"
	"github.com/driftline/driftline/internal/ingest"
	"github.com/driftline/driftline/internal/scheduler"
)

// Scraper runs one scrape cycle.
type Scraper interface {
	Run(ctx context.Context, filter ingest.Filter) (ingest.Summary, error)
}

// Refresher runs one scheduled refresh cycle over due projects.
type Refresher interface {
	RunScheduledRefresh(ctx context.Context) (scheduler.RefreshSummary, error)
}

// DetectionRunner runs the batched detection and momentum passes.
type DetectionRunner interface {
	DetectSignals(ctx context.Context, projectID string, lookbackHours int) (detection.DetectionSummary, error)
	AnalyzeMomentum(ctx context.Context, projectID string, lookbackHours int) (detection.MomentumSummary, error)
}

// HealthReader computes the pipeline health view.
type HealthReader interface {
	Check(ctx context.Context) (scheduler.Health, error)
}

// Pinger verifies store connectivity for liveness checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler exposes the pipeline's entry points over HTTP. Every entry point
// returns a summary of counts; partial failures (duplicates, per-source
// extraction trouble, zero-signal detections) are reflected in the counts,
// not in the status code.
type Handler struct {
	scraper         Scraper
	refresher       Refresher
	detection       DetectionRunner
	health          HealthReader
	db              Pinger
	defaultLookback int
	logger          *slog.Logger
	startTime       time.Time
}

// NewHandler creates the API handler.
func NewHandler(scraper Scraper, refresher Refresher, detectionRunner DetectionRunner, health HealthReader, db Pinger, defaultLookback int, logger *slog.Logger) *Handler {
	return &Handler{
		scraper:         scraper,
		refresher:       refresher,
		detection:       detectionRunner,
		health:          health,
		db:              db,
		defaultLookback: defaultLookback,
		logger:          logger,
		startTime:       time.Now(),
	}
}

type scrapeRequest struct {
	SourceID  string `json:"source_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// ScrapeHandler handles POST /api/v1/scrape. An empty body scrapes every
// active source; source_id or project_id narrows the run.
func (h *Handler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scrapeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, err := h.scraper.Run(r.Context(), ingest.Filter{
		SourceID:  req.SourceID,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		h.logger.Error("scrape run failed", "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// RefreshHandler handles POST /api/v1/refresh: one scheduled refresh cycle,
// run on demand.
func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.refresher.RunScheduledRefresh(r.Context())
	if err != nil {
		h.logger.Error("refresh run failed", "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

type detectRequest struct {
	ProjectID     string `json:"project_id"`
	LookbackHours int    `json:"lookback_hours,omitempty"`
}

// DetectHandler handles POST /api/v1/detect: the batched detection pass for
// one project.
func (h *Handler) DetectHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseDetectRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.detection.DetectSignals(r.Context(), req.ProjectID, req.LookbackHours)
	if err != nil {
		h.logger.Error("detection pass failed", "project_id", req.ProjectID, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// MomentumHandler handles POST /api/v1/momentum: the momentum re-analysis
// pass for one project.
func (h *Handler) MomentumHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseDetectRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.detection.AnalyzeMomentum(r.Context(), req.ProjectID, req.LookbackHours)
	if err != nil {
		h.logger.Error("momentum pass failed", "project_id", req.ProjectID, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) parseDetectRequest(w http.ResponseWriter, r *http.Request) (detectRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return detectRequest{}, false
	}

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return detectRequest{}, false
	}
	if req.ProjectID == "" {
		h.writeError(w, http.StatusBadRequest, "project_id is required")
		return detectRequest{}, false
	}
	if req.LookbackHours <= 0 {
		req.LookbackHours = h.defaultLookback
	}

	return req, true
}

// PipelineHealthHandler handles GET /api/v1/pipeline/health.
func (h *Handler) PipelineHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health, err := h.health.Check(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, health)
}

// HealthzHandler handles GET /healthz: process liveness plus store
// connectivity.
func (h *Handler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		status = "database unreachable"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]string{"error": message})
}
