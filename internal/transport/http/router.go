// Package http assembles the HTTP surface: route mounting, middleware order
// and the operational endpoints. Domain handlers register themselves under
// their own mounts.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronos/internal/audit"
	"chronos/internal/jwttoken"
	"chronos/internal/notification"
	"chronos/internal/permission"
	"chronos/internal/platform/metrics"
	"chronos/internal/platform/middleware"
	"chronos/internal/preference"
	"chronos/internal/transport/http/shared"
	"chronos/internal/workflow"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	JWT           middleware.JWTValidator
	Auth          *jwttoken.Handler
	Permissions   *permission.Handler
	Workflows     *workflow.Handler
	Audit         *audit.Handler
	Notifications *notification.Handler
	Preferences   *preference.Handler

	// Health probes; nil entries are reported as "disabled".
	RedisHealth    func() error
	PostgresHealth func() error
}

// NewRouter builds the full route tree. All /api/v1 routes require a valid
// bearer token; /health and /metrics stay open for probes and scrapers.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
	}

	r.Get("/health", d.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/auth", d.Auth.Register)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(d.JWT, d.Logger))
		api.Route("/permissions", d.Permissions.Register)
		api.Route("/workflows", d.Workflows.Register)
		api.Route("/audit", d.Audit.Register)
		api.Route("/notifications", d.Notifications.Register)
		api.Route("/preferences", d.Preferences.Register)
	})

	return r
}

func (d Deps) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{
		"redis":    probe(d.RedisHealth),
		"postgres": probe(d.PostgresHealth),
	}
	for _, v := range checks {
		if v == "down" {
			status = http.StatusServiceUnavailable
		}
	}
	shared.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func probe(check func() error) string {
	if check == nil {
		return "disabled"
	}
	if err := check(); err != nil {
		return "down"
	}
	return "up"
}

// instrument records request latency per chi route pattern so high-cardinality
// path parameters stay out of the label set.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
