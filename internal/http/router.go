// Package httpapi assembles the public HTTP surface: middleware chain,
// identity routes, health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"campusid/internal/platform/metrics"
	"campusid/pkg/platform/httputil"
	"campusid/pkg/platform/middleware/requestid"
	"campusid/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *metrics.Metrics
	RequestTimeout time.Duration
	AllowedOrigins []string
	// WriteLimit throttles mutating requests when set.
	WriteLimit   func(http.Handler) http.Handler
	HealthChecks map[string]HealthCheck
	Modules      []Registrar
}

// NewRouter wires the middleware chain and every module.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestid.Middleware)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Location", "Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}).Handler)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(requesttime.Middleware)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", healthHandler(cfg.Logger, cfg.HealthChecks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		if cfg.WriteLimit != nil {
			r.Use(cfg.WriteLimit)
		}
		for _, m := range cfg.Modules {
			m.Register(r)
		}
	})
	return otelhttp.NewHandler(r, "campusid",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		errs := make(map[string]error, len(checks))
		for name := range checks {
			results[name] = "ok"
		}

		var (
			g  errgroup.Group
			mu sync.Mutex
		)
		for name, check := range checks {
			g.Go(func() error {
				if err := check(ctx); err != nil {
					mu.Lock()
					errs[name] = err
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		resp := healthResponse{Status: "ok", Checks: results}
		for name, err := range errs {
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
			logger.WarnContext(ctx, "health check failed", "check", name, "error", err.Error())
		}
		httputil.WriteJSON(w, status, resp)
	}
}
