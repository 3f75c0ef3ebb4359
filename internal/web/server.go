// Package web serves the operator dashboard: the expanded table, the point
// map, and the service health endpoints.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
	"github.com/karpatalabs/incident-map-etl/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Refresher runs one fetch-expand-upload cycle on demand.
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.Result, error)
	CheckReadiness(ctx context.Context) error
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	refresher  Refresher
	normalizer domain.Normalizer
	maxPoints  int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the dashboard server. Every GET / triggers a full
// refresh, matching the original operator workflow of reloading the page
// to re-sync sheet, map, and layer.
func NewServer(addr string, refresher Refresher, normalizer domain.Normalizer, maxPoints int, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		refresher:  refresher,
		normalizer: normalizer,
		maxPoints:  maxPoints,
		metrics:    metrics,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
		// The index handler performs the sheet fetch and layer upload
		// inline, so the write timeout must cover a whole refresh.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// pageData is the template model for the dashboard page.
type pageData struct {
	RunID        string
	GeneratedAt  string
	Rows         []domain.ExpandedRow
	ValueHeaders []string
	Map          *MapView
	Error        string
	UploadNote   string
	NoData       bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
	data := pageData{ValueHeaders: valueHeaders()}

	res, err := s.refresher.Refresh(r.Context())
	if err != nil {
		// Run-level failure: render the error state, never a blank page.
		logger.Error("refresh failed", "error", err)
		data.Error = "Data was not obtained from the source table: " + err.Error()
		s.render(w, data)
		return
	}

	data.RunID = res.RunID
	data.GeneratedAt = res.Started.UTC().Format(time.RFC3339)
	data.Rows = res.Rows
	data.NoData = len(res.Rows) == 0
	if res.UploadErr != nil {
		data.UploadNote = "Feature layer upload failed; the table and map show this run's data anyway."
	}

	if len(res.Rows) > 0 {
		mv, droppedByKind, err := BuildMapView(res.Rows, s.normalizer, s.maxPoints)
		if err != nil {
			logger.Error("map build failed", "error", err)
		} else {
			data.Map = mv
		}
		for kind, n := range droppedByKind {
			s.metrics.RowsDropped.WithLabelValues("map", kind).Add(float64(n))
			logger.Warn("rows excluded from map", "reason", kind, "rows", n)
		}
	}

	s.render(w, data)
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("template render failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.refresher.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func valueHeaders() []string {
	headers := make([]string, domain.ValueColumns)
	for i := range headers {
		headers[i] = domain.ValueKey(i + 1)
	}
	return headers
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
