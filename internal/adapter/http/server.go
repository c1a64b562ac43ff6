package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	routeForward = "/v1/geocode/forward"
	routeReverse = "/v1/geocode/reverse"

	lookupTimeout = 15 * time.Second

	// statusClientClosedRequest is the nginx convention for a caller that
	// went away before the lookup finished.
	statusClientClosedRequest = 499
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the lookup API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	geocoder   domain.Geocoder
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1/geocode lookup routes.
func NewServer(addr string, geocoder domain.Geocoder, ready ReadinessChecker, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: lookupTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		metrics:  metrics,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET "+routeForward, s.handleForward)
	mux.HandleFunc("GET "+routeReverse, s.handleReverse)

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

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("q"))
	if address == "" {
		s.writeError(w, routeForward, http.StatusBadRequest, "missing query parameter q", 0)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	placemarks, err := s.geocoder.ForwardGeocode(ctx, address)
	s.respond(w, r, routeForward, placemarks, err)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lat, latErr := strconv.ParseFloat(query.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(query.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		s.writeError(w, routeReverse, http.StatusBadRequest, "lat and lon must be numbers", 0)
		return
	}
	coord := domain.Coordinate{Latitude: lat, Longitude: lon}
	if !coord.Valid() {
		s.writeError(w, routeReverse, http.StatusBadRequest, "coordinate out of range", 0)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	placemarks, err := s.geocoder.ReverseGeocode(ctx, coord)
	s.respond(w, r, routeReverse, placemarks, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, route string, placemarks []domain.Placemark, err error) {
	if err != nil {
		status := statusForError(err)
		code, _ := domain.CodeOf(err)
		if status == statusClientClosedRequest {
			s.logger.Debug("lookup request abandoned by client", "route", route)
		} else {
			s.logger.Warn("lookup request failed", "route", route, "status_code", status, "error", err)
		}
		s.writeError(w, route, status, err.Error(), code)
		return
	}

	s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(http.StatusOK)).Inc()
	if r.URL.Query().Get("format") == "geojson" {
		writeJSON(w, http.StatusOK, domain.FeatureCollection(placemarks))
		return
	}
	if placemarks == nil {
		placemarks = []domain.Placemark{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Placemark{"placemarks": placemarks})
}

// statusForError maps lookup failures to HTTP status codes.
func statusForError(err error) int {
	if _, ok := domain.CodeOf(err); ok {
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, route string, status int, msg string, code domain.ErrorCode) {
	s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	body := map[string]any{"error": msg}
	if code != 0 {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
