package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	pooldomain "github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/callmask/golang_services/internal/public_api_service/middleware"
	"github.com/go-chi/chi/v5"
)

type PoolStatsReader interface {
	Stats(ctx context.Context) (pooldomain.PoolStats, error)
}

// PoolHandler exposes pool occupancy to administrators.
type PoolHandler struct {
	pool    PoolStatsReader
	checker middleware.ScopeChecker
	logger  *slog.Logger
}

func NewPoolHandler(pool PoolStatsReader, checker middleware.ScopeChecker, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		pool:    pool,
		checker: checker,
		logger:  logger.With("handler", "pool"),
	}
}

// RegisterRoutes registers the admin only pool routes.
func (h *PoolHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireScope(h.checker, authdomain.ScopeAdmin, h.logger)).
		Get("/pool/status", h.handlePoolStatus)
}

func (h *PoolHandler) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pool.Stats(r.Context())
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PoolStatusResponse{
		TotalProxies:     stats.Total,
		AvailableProxies: stats.Available,
		UsagePercent:     fmt.Sprintf("%.1f%%", stats.UsagePercent()),
	})
}
