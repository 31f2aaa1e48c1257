package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"remindly/internal/registration/models"
	"remindly/internal/transport/http/shared"
	dErrors "remindly/pkg/domain-errors"
)

// Service defines the interface for registration operations.
type Service interface {
	Create(ctx context.Context, req models.CreateRegistrationRequest) (*models.Registration, error)
	Get(ctx context.Context, rawID string) (*models.Registration, error)
}

// Handler handles registration intake endpoints.
type Handler struct {
	logger *slog.Logger
	svc    Service
}

// New creates a new registration Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, svc: svc}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.handleCreate)
	r.Get("/registrations/{id}", h.handleGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid registration body",
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	reg, err := h.svc.Create(ctx, req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "registration rejected",
				"error", err.Error(),
			)
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create registration",
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to create registration"))
		return
	}

	shared.WriteJSON(w, http.StatusCreated, models.CreateRegistrationResponse{
		Status: "registered",
		ID:     reg.ID,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reg, err := h.svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) || dErrors.Is(err, dErrors.CodeNotFound) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load registration",
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load registration"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, reg)
}
