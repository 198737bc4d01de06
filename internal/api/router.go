package api

import (
	"net/http"

	"github.com/driftline/driftline/internal/metrics"
)

// NewRouter wires the pipeline endpoints onto a mux and wraps it with HTTP
// metrics instrumentation.
func NewRouter(h *Handler, collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/scrape", h.ScrapeHandler)
	mux.HandleFunc("/api/v1/refresh", h.RefreshHandler)
	mux.HandleFunc("/api/v1/detect", h.DetectHandler)
	mux.HandleFunc("/api/v1/momentum", h.MomentumHandler)
	mux.HandleFunc("/api/v1/pipeline/health", h.PipelineHealthHandler)

	mux.HandleFunc("/healthz", h.HealthzHandler)
	mux.Handle("/metrics", collector.Handler())

	return collector.InstrumentHandler(mux)
}
