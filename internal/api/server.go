package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/clock/system"
	"github.com/JakeFAU/trends-scraper/internal/metrics"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const (
	serviceName    = "Google Trends API"
	serviceVersion = "1.0.0"
)

// Options tunes the server. Zero values select defaults.
type Options struct {
	// RequestTimeout bounds each request, including the upstream fetch.
	RequestTimeout time.Duration
	// Clock stamps health responses and download filenames.
	Clock trends.Clock
}

// Server wires HTTP handlers to the trends service.
type Server struct {
	router  chi.Router
	service trends.Service
	clock   trends.Clock
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service trends.Service, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	s := &Server{
		service: service,
		clock:   opts.Clock,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/trends", s.getTrends)
		r.Get("/trends/download", s.downloadTrends)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"trends":   "/api/trends",
			"download": "/api/trends/download",
			"health":   "/api/health",
		},
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.clock.Now(),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getTrends(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeDetail(s.logger, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	collection, err := s.service.Fetch(r.Context(), q)
	if err != nil {
		s.logger.Error("fetch trends failed", zap.String("request_id", requestID(r)), zap.Error(err))
		writeDetail(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("Error fetching trends: %v", err))
		return
	}
	writeJSON(s.logger, w, http.StatusOK, collection)
}

func (s *Server) downloadTrends(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeDetail(s.logger, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	collection, err := s.service.Fetch(r.Context(), q)
	if err != nil {
		s.logger.Error("download trends failed", zap.String("request_id", requestID(r)), zap.Error(err))
		writeDetail(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("Error generating download: %v", err))
		return
	}
	body, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		writeDetail(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("Error generating download: %v", err))
		return
	}
	filename := fmt.Sprintf("google_trends_%s_%s.json", collection.Location, s.clock.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write download failed", zap.Error(err))
	}
}

// parseQuery maps query parameters onto a trends.Query. Unset parameters stay
// nil so they are left out of the upstream URL.
func parseQuery(r *http.Request) (trends.Query, error) {
	values := r.URL.Query()
	q := trends.Query{
		Geo:      values.Get("geo"),
		Language: values.Get("hl"),
		Category: optionalParam(values.Get("category")),
		Sort:     optionalParam(values.Get("sort")),
		Status:   optionalParam(values.Get("status")),
		URL:      optionalParam(values.Get("url")),
	}
	if raw := values.Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return trends.Query{}, errors.New("hours must be an integer")
		}
		q.Hours = &hours
	}
	return q, nil
}

func optionalParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeDetail(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"detail": msg})
}
