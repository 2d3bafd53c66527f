// Package api provides the operational HTTP server: health probes, the
// Prometheus scrape endpoint, and read-only session inspection.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/api/handlers"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
)

// NewRouter creates and configures the chi router.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe (database ping)
//   - GET /metrics - Prometheus scrape endpoint (when metrics are enabled)
//   - GET /api/v1/sessions/{id} - Session inspection
//   - GET /api/v1/sessions/{id}/images - Session image listing
func NewRouter(cfg Config, store handlers.Pinger, sessions capture.SessionRepository, images capture.ImageRepository) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	// Inspection routes exist only when the capture core is enabled.
	if sessions != nil && images != nil {
		sessionHandler := handlers.NewSessionHandler(sessions, images)
		r.Route("/api/v1/sessions", func(r chi.Router) {
			r.Get("/{id}", sessionHandler.Get)
			r.Get("/{id}/images", sessionHandler.ListImages)
		})
	}

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests through the internal logger. Healthcheck and
// scrape requests log at DEBUG to keep steady-state logs quiet.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDuration, time.Since(start).String(),
		}

		if isHealthPath(r.URL.Path) || r.URL.Path == "/metrics" {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
