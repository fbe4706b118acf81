package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/health"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/telemetry"
)

// RouterConfig wires the router's dependencies. Nil optional fields turn
// the matching middleware off.
type RouterConfig struct {
	Handler        *Handler
	Health         *health.Checker
	Logger         *logging.Logger
	AllowedOrigins []string

	// Optional.
	Limiter Limiter
	Metrics *telemetry.HTTPMetrics
	Tracer  trace.Tracer
}

// NewRouter builds the service router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrNop(cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	if cfg.Tracer != nil {
		r.Use(telemetry.TracingMiddleware(cfg.Tracer))
	}
	if cfg.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(cfg.Metrics))
	}
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(SecurityHeaders)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(CORS(cfg.AllowedOrigins))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimit(cfg.Limiter, ClientIP))
		}
		r.Get("/facilities/nearby", cfg.Handler.Nearby)
		r.Get("/locations/reverse", cfg.Handler.Reverse)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, errors.NotFound("route not found"))
	})

	return r
}
