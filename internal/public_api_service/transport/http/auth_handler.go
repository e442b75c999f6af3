package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody     = errors.New("request body is empty")
	errMalformedBody = errors.New("request body is not a valid JSON object")
)

// Authenticator issues tokens for valid credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*authdomain.Token, error)
}

// AuthHandler handles authentication related HTTP requests.
type AuthHandler struct {
	auth     Authenticator
	logger   *slog.Logger
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator, logger *slog.Logger, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		logger:   logger.With("handler", "auth"),
		validate: validate,
	}
}

// RegisterRoutes registers authentication routes with the given router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		h.logger.InfoContext(ctx, "Login request failed validation", "request_id", middleware.GetReqID(ctx))
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return
	}

	token, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	})
}

// decodeJSONBody reads a single JSON object of at most maxBodyBytes.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errMalformedBody
	}
	return nil
}
