/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging and latency histogram
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/projection                   Single projection
  /api/reconcile                    Reconciliation
  /api/users/{username}/records     Tracked records
  /api/users/{username}/duty-leave  Duty-leave allowance
  /metrics                          Prometheus scrape
  /healthz                          Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/attendance/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/attendance-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/projection", h.GetProjection)
		r.Post("/reconcile", h.Reconcile)

		// Tracked record routes
		r.Route("/users/{username}", func(r chi.Router) {
			r.Get("/records", h.ListRecords)
			r.Post("/records", h.CreateRecord)
			r.Delete("/records", h.DeleteRecord)
			r.Get("/duty-leave", h.GetDutyLeave)
		})
	})

	return r
}

// requestLogger logs each request through zerolog and records its latency
// under the matched route pattern.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.APIRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		h.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}
