package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RateLimitPerIP allows perMinute requests per client IP across every route it
// wraps. Place it after chi's RealIP so proxied clients are told apart.
func RateLimitPerIP(perMinute int, logger *slog.Logger) func(next http.Handler) http.Handler {
	return rateLimit(perMinute, logger, httprate.KeyByIP)
}

// RateLimitPerRoute allows perMinute requests per client IP and endpoint.
func RateLimitPerRoute(perMinute int, logger *slog.Logger) func(next http.Handler) http.Handler {
	return rateLimit(perMinute, logger, httprate.KeyByIP, httprate.KeyByEndpoint)
}

func rateLimit(perMinute int, logger *slog.Logger, keyFuncs ...httprate.KeyFunc) func(next http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyFuncs...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				"request_id", chimiddleware.GetReqID(r.Context()),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeJSONError(w, "Too many requests", http.StatusTooManyRequests)
		}),
	)
}
