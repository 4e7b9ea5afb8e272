// Package monitoring exposes run metrics over Prometheus and a small status
// endpoint for long or scheduled scraper runs.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// Metrics collects run counters. A nil *Metrics is valid and counts nothing,
// so callers never need to guard instrumentation sites.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched       prometheus.Counter
	pagesFailed        prometheus.Counter
	extractionFailures prometheus.Counter
	recordsCollected   prometheus.Counter
	downloads          *prometheus.CounterVec

	mu        sync.Mutex
	startedAt time.Time
	lastPage  int
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spbebonds_pages_fetched_total",
			Help: "Listing and detail pages fetched successfully.",
		}),
		pagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spbebonds_pages_failed_total",
			Help: "Pages that failed to fetch after all retries.",
		}),
		extractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spbebonds_extraction_failures_total",
			Help: "Pages where no locator strategy recovered a payload.",
		}),
		recordsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spbebonds_records_collected_total",
			Help: "Bond records collected after deduplication.",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spbebonds_downloads_total",
			Help: "Prospectus download outcomes.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.pagesFetched,
		m.pagesFailed,
		m.extractionFailures,
		m.recordsCollected,
		m.downloads,
	)
	return m
}

// PageFetched records a successfully fetched page.
func (m *Metrics) PageFetched(page int) {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
	m.mu.Lock()
	m.lastPage = page
	m.mu.Unlock()
}

// PageFailed records a page that failed after all retries.
func (m *Metrics) PageFailed() {
	if m == nil {
		return
	}
	m.pagesFailed.Inc()
}

// ExtractionFailed records a page with no recoverable payload.
func (m *Metrics) ExtractionFailed() {
	if m == nil {
		return
	}
	m.extractionFailures.Inc()
}

// RecordsCollected adds to the collected record counter.
func (m *Metrics) RecordsCollected(n int) {
	if m == nil {
		return
	}
	m.recordsCollected.Add(float64(n))
}

// DownloadFinished records one prospectus download outcome.
func (m *Metrics) DownloadFinished(status types.DownloadStatus) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(status.String()).Inc()
}

// Server serves /metrics and /healthz while a run is in progress.
type Server struct {
	metrics *Metrics
	logger  utils.Logger
	srv     *http.Server
}

// NewServer creates the status server bound to addr.
func NewServer(addr string, metrics *Metrics, logger utils.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		metrics.mu.Lock()
		status := map[string]interface{}{
			"status":     "ok",
			"started_at": metrics.startedAt.Format(time.RFC3339),
			"last_page":  metrics.lastPage,
		}
		metrics.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)

	return &Server{
		metrics: metrics,
		logger:  logger,
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves in a background goroutine until Stop is called.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("metrics endpoint listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics server: %v", err)
		}
	}()
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
