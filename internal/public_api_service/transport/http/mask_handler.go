package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	maskdomain "github.com/callmask/golang_services/internal/masking_service/domain"
	"github.com/callmask/golang_services/internal/public_api_service/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maskedCallMessage = "Real number masked by proxy (simulation)"

// CallMasker is the orchestrator entry point. It checks the token itself so
// that request shape errors are reported before authorization errors.
type CallMasker interface {
	MaskCall(ctx context.Context, token string, req maskdomain.MaskRequest) (*maskdomain.MaskedCall, error)
}

type MaskHandler struct {
	masker   CallMasker
	logger   *slog.Logger
	validate *validator.Validate
}

func NewMaskHandler(masker CallMasker, logger *slog.Logger, validate *validator.Validate) *MaskHandler {
	return &MaskHandler{
		masker:   masker,
		logger:   logger.With("handler", "mask"),
		validate: validate,
	}
}

func (h *MaskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/mask/call", h.handleMaskCall)
}

func (h *MaskHandler) handleMaskCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req MaskCallRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return
	}

	// A missing header is passed on as an empty token and rejected by the
	// orchestrator after the request shape has been checked.
	token, _ := middleware.BearerToken(r)

	masked, err := h.masker.MaskCall(ctx, token, maskdomain.MaskRequest{
		CallerReal: req.CallerReal,
		CalleeReal: req.CalleeReal,
	})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, MaskCallResponse{
		Success:     true,
		CallID:      masked.CallID,
		ProxyNumber: masked.ProxyNumber,
		ExpiresAt:   masked.ExpiresAt.UTC().Format(time.RFC3339),
		Message:     maskedCallMessage,
	})
}
