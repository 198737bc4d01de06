package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// ingestion pipeline.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	itemsIngested      *prometheus.CounterVec
	duplicatesSkipped  *prometheus.CounterVec
	extractionAttempts *prometheus.CounterVec
	signalsDetected    *prometheus.CounterVec
	detectionFailures  prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "driftline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	itemsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "pipeline",
		Name:      "items_ingested_total",
		Help:      "Raw ingestions stored, by source type.",
	}, []string{"source_type"})

	duplicatesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "pipeline",
		Name:      "duplicates_skipped_total",
		Help:      "Extracted items skipped because their content hash already existed.",
	}, []string{"source_type"})

	extractionAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "pipeline",
		Name:      "extraction_attempts_total",
		Help:      "Extraction attempts by tier and outcome.",
	}, []string{"tier", "outcome"})

	signalsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "pipeline",
		Name:      "signals_detected_total",
		Help:      "Signals persisted, by momentum classification.",
	}, []string{"momentum"})

	detectionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "driftline",
		Subsystem: "pipeline",
		Name:      "detection_failures_total",
		Help:      "Ingestions marked analysis_failed.",
	})

	collectors := []prometheus.Collector{
		requestDuration,
		requestTotal,
		itemsIngested,
		duplicatesSkipped,
		extractionAttempts,
		signalsDetected,
		detectionFailures,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:           registry,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		itemsIngested:      itemsIngested,
		duplicatesSkipped:  duplicatesSkipped,
		extractionAttempts: extractionAttempts,
		signalsDetected:    signalsDetected,
		detectionFailures:  detectionFailures,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordIngested counts a stored ingestion.
func (c *Collector) RecordIngested(sourceType string) {
	c.itemsIngested.WithLabelValues(sourceType).Inc()
}

// RecordDuplicate counts a skipped duplicate.
func (c *Collector) RecordDuplicate(sourceType string) {
	c.duplicatesSkipped.WithLabelValues(sourceType).Inc()
}

// RecordExtraction counts one extraction attempt for a fallback tier.
func (c *Collector) RecordExtraction(tier, outcome string) {
	c.extractionAttempts.WithLabelValues(tier, outcome).Inc()
}

// RecordSignal counts a persisted signal.
func (c *Collector) RecordSignal(momentum string) {
	c.signalsDetected.WithLabelValues(momentum).Inc()
}

// RecordDetectionFailure counts an ingestion marked analysis_failed.
func (c *Collector) RecordDetectionFailure() {
	c.detectionFailures.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
