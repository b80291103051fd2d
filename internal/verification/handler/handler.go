package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/verification/service"
	"civreg/pkg/platform/httputil"
)

// Service is the lookup surface the handler depends on.
type Service interface {
	Lookup(ctx context.Context, number string) (*service.Result, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated verification route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{number}", h.handleLookup)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
