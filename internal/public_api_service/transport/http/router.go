package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/callmask/golang_services/internal/public_api_service/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RateLimits are requests per minute per client IP. Zero disables a limit.
type RateLimits struct {
	Global     int
	Login      int
	PoolStatus int
	Mask       int
}

type RouterConfig struct {
	AllowedOrigins []string
	RateLimits     RateLimits
	RequestTimeout time.Duration
}

// RouterDeps are the handlers mounted by NewRouter.
type RouterDeps struct {
	Auth   *AuthHandler
	Pool   *PoolHandler
	Mask   *MaskHandler
	Health *HealthHandler
}

// NewRouter builds the public API router.
func NewRouter(cfg RouterConfig, deps RouterDeps, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	deps.Health.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.RateLimitPerIP(cfg.RateLimits.Global, logger))

		api.Group(func(login chi.Router) {
			login.Use(middleware.RateLimitPerRoute(cfg.RateLimits.Login, logger))
			deps.Auth.RegisterRoutes(login)
		})
		api.Group(func(pool chi.Router) {
			pool.Use(middleware.RateLimitPerRoute(cfg.RateLimits.PoolStatus, logger))
			deps.Pool.RegisterRoutes(pool)
		})
		api.Group(func(mask chi.Router) {
			mask.Use(middleware.RateLimitPerRoute(cfg.RateLimits.Mask, logger))
			deps.Mask.RegisterRoutes(mask)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})
	return r
}
