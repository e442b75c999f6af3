package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedUserContextKey = ContextKey("authenticatedUser")
)

var ErrMissingBearerToken = errors.New("bearer token required")

// AuthenticatedUser holds what the handlers may know about the caller.
type AuthenticatedUser struct {
	Username string
	Scope    authdomain.Scope
	TokenID  string
}

// ScopeChecker is the part of the auth gateway the middleware needs.
type ScopeChecker interface {
	RequireScope(ctx context.Context, token string, required authdomain.Scope) (*authdomain.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return "", ErrMissingBearerToken
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearerToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearerToken
	}
	return token, nil
}

// RequireScope rejects requests whose bearer token is missing, invalid, expired
// (401) or carries another scope (403). The authenticated user is stored in the
// request context for the next handler.
func RequireScope(checker ScopeChecker, required authdomain.Scope, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := chimiddleware.GetReqID(ctx)

			token, err := BearerToken(r)
			if err != nil {
				logger.WarnContext(ctx, "Bearer token missing", "request_id", reqID, "path", r.URL.Path)
				writeJSONError(w, "Token required", http.StatusUnauthorized)
				return
			}

			claims, err := checker.RequireScope(ctx, token, required)
			if err != nil {
				switch {
				case errors.Is(err, authdomain.ErrForbidden):
					logger.WarnContext(ctx, "Scope check failed", "request_id", reqID, "required", required.String())
					writeJSONError(w, "Forbidden", http.StatusForbidden)
				case errors.Is(err, authdomain.ErrTokenExpired):
					writeJSONError(w, "Token has expired", http.StatusUnauthorized)
				case errors.Is(err, authdomain.ErrTokenInvalid):
					logger.WarnContext(ctx, "Invalid token presented", "request_id", reqID)
					writeJSONError(w, "Invalid token", http.StatusUnauthorized)
				default:
					logger.ErrorContext(ctx, "Token verification failed", "request_id", reqID, "error", err)
					writeJSONError(w, "Internal server error", http.StatusInternalServerError)
				}
				return
			}

			user := AuthenticatedUser{Username: claims.Subject, Scope: claims.Scope, TokenID: claims.TokenID}
			ctx = context.WithValue(ctx, AuthenticatedUserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthenticatedUser returns the user stored by RequireScope.
func GetAuthenticatedUser(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(AuthenticatedUserContextKey).(AuthenticatedUser)
	return user, ok
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}
