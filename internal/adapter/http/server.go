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

	"github.com/mbjoseph/floodfreq/internal/analysis"
	"github.com/mbjoseph/floodfreq/internal/domain"
)

// AnalysisProvider serves station snapshots and return-interval queries.
// *analysis.Analyzer satisfies it.
type AnalysisProvider interface {
	CheckReadiness(ctx context.Context) error
	Stations() []analysis.StationStatus
	Maxima(siteNo string) ([]domain.AnnualMaximum, error)
	ReturnInterval(siteNo string, threshold float64, method string) (domain.ReturnIntervalEstimate, error)
}

// Server exposes health, readiness, metrics, and the v1 query API.
type Server struct {
	httpServer *http.Server
	provider   AnalysisProvider
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, provider AnalysisProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider: provider,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/stations", s.handleStations)
	mux.HandleFunc("GET /v1/stations/{site}/maxima", s.handleMaxima)
	mux.HandleFunc("GET /v1/stations/{site}/return-interval", s.handleReturnInterval)

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

	if err := s.provider.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stations": s.provider.Stations()})
}

func (s *Server) handleMaxima(w http.ResponseWriter, r *http.Request) {
	site := r.PathValue("site")

	maxima, err := s.provider.Maxima(site)
	if err != nil {
		s.writeQueryError(w, site, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site_no":       site,
		"annual_maxima": maxima,
	})
}

// returnIntervalResponse is the v1 return-interval payload. Undefined
// estimates are an expected outcome, reported with defined=false and a
// reason instead of an error status or an infinity.
type returnIntervalResponse struct {
	SiteNo    string                         `json:"site_no"`
	Method    string                         `json:"method"`
	Threshold float64                        `json:"threshold"`
	Defined   bool                           `json:"defined"`
	Estimate  *domain.ReturnIntervalEstimate `json:"estimate,omitempty"`
	Reason    string                         `json:"reason,omitempty"`
}

func (s *Server) handleReturnInterval(w http.ResponseWriter, r *http.Request) {
	site := r.PathValue("site")

	threshold, err := strconv.ParseFloat(r.URL.Query().Get("threshold"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threshold must be a number"})
		return
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		method = domain.MethodEmpirical
	}
	if method != domain.MethodEmpirical && method != domain.MethodGEV {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method must be \"empirical\" or \"gev\""})
		return
	}

	estimate, err := s.provider.ReturnInterval(site, threshold, method)
	if err != nil {
		var undefined *domain.UndefinedExceedanceError
		if errors.As(err, &undefined) {
			writeJSON(w, http.StatusOK, returnIntervalResponse{
				SiteNo:    site,
				Method:    method,
				Threshold: threshold,
				Defined:   false,
				Reason:    undefined.Error(),
			})
			return
		}
		s.writeQueryError(w, site, err)
		return
	}

	writeJSON(w, http.StatusOK, returnIntervalResponse{
		SiteNo:    site,
		Method:    method,
		Threshold: threshold,
		Defined:   true,
		Estimate:  &estimate,
	})
}

// writeQueryError maps analyzer and domain errors to HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, site string, err error) {
	var invalid *domain.InvalidParametersError

	switch {
	case errors.Is(err, analysis.ErrUnknownStation):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown station " + site})
	case errors.Is(err, analysis.ErrNotAnalyzed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, analysis.ErrModelUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptySeries):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid):
		s.logger.Error("invalid fitted parameters served", "site_no", site, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("query failed", "site_no", site, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
