// Package http exposes the serving boundary: health, readiness, metrics,
// probability lookups, and year summaries.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/stats"
)

// RiskPredictor answers single-query probability lookups.
type RiskPredictor interface {
	Predict(location string, hourOneIndexed int) (float64, error)
	ReadinessChecker
}

// ReadinessChecker reports whether a component is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Summarizer computes per-year incident summaries.
type Summarizer interface {
	YearSummary(ctx context.Context, year int) (stats.Summary, error)
}

// Server exposes the HTTP endpoints of the serving process.
type Server struct {
	httpServer *http.Server
	predictor  RiskPredictor
	summarizer Summarizer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, readiness, metrics, predict,
// and summary routes. summarizer may be nil to disable /summary.
func NewServer(addr string, predictor RiskPredictor, summarizer Summarizer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		predictor:  predictor,
		summarizer: summarizer,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /predict", s.handlePredict)
	if summarizer != nil {
		mux.HandleFunc("GET /summary/{year}", s.handleSummary)
	}

	return s
}

// NewHealthServer creates a server with only health, readiness, and metrics
// routes. Used by the ingest process, which serves no predictions.
func NewHealthServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ready.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.predictor.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// predictRequest is the body of POST /predict. Hour is 1-indexed (1..24),
// matching what the presentation layer sends.
type predictRequest struct {
	Location string `json:"location"`
	Hour     int    `json:"hour"`
}

type predictResponse struct {
	Location    string  `json:"location"`
	Hour        int     `json:"hour"`
	Probability float64 `json:"probability"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location is required"})
		return
	}

	probability, err := s.predictor.Predict(req.Location, req.Hour)
	if err != nil {
		s.writePredictError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Location:    req.Location,
		Hour:        req.Hour,
		Probability: probability,
	})
}

// writePredictError maps the core error taxonomy onto HTTP statuses. The
// distinct classes stay distinguishable in the response body.
func (s *Server) writePredictError(w http.ResponseWriter, req predictRequest, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownLocation):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown location: " + req.Location})
	case errors.Is(err, domain.ErrHourOutOfRange):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hour must be between 1 and 24"})
	case errors.Is(err, domain.ErrModelNotLoaded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "model not loaded"})
	default:
		s.logger.Error("predict failed", "error", err, "location", req.Location, "hour", req.Hour)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
		return
	}

	summary, err := s.summarizer.YearSummary(r.Context(), year)
	if err != nil {
		s.logger.Error("summary failed", "error", err, "year", year)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
