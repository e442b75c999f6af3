package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	maskdomain "github.com/callmask/golang_services/internal/masking_service/domain"
	pooldomain "github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/go-chi/chi/v5/middleware"
)

const internalErrorMessage = "Internal server error"

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

func respondWithError(w http.ResponseWriter, code int, message, details string) {
	respondWithJSON(w, code, GenericErrorResponse{Error: message, Details: details})
}

// respondWithDomainError maps service errors to status codes. Anything not
// recognised is logged in full and reported as a bare 500.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *maskdomain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, "Validation failed", verr.Error())
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials", "")
	case errors.Is(err, authdomain.ErrTokenExpired):
		respondWithError(w, http.StatusUnauthorized, "Token has expired", "")
	case errors.Is(err, authdomain.ErrTokenInvalid):
		respondWithError(w, http.StatusUnauthorized, "Invalid token", "")
	case errors.Is(err, authdomain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, pooldomain.ErrPoolExhausted):
		logger.WarnContext(r.Context(), "Proxy pool exhausted", "request_id", middleware.GetReqID(r.Context()))
		respondWithError(w, http.StatusServiceUnavailable, "No proxy number available", "")
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		respondWithError(w, http.StatusInternalServerError, internalErrorMessage, "")
	}
}
