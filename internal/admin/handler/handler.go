package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/admin/models"
	"civreg/internal/admin/service"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// Service is the admin account surface the handler depends on.
type Service interface {
	CreateAdmin(ctx context.Context, username, password string) (*models.Administrator, error)
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	CompleteLogin(ctx context.Context, email, code string) (*service.LoginResult, error)
	RequestEmailBinding(ctx context.Context, adminID id.AdminID, email string) error
	ConfirmEmailBinding(ctx context.Context, adminID id.AdminID, email, code string) error
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the login routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/admin/login", h.handleLogin)
	r.Post("/admin/login/complete", h.handleCompleteLogin)
}

// RegisterAdmin mounts the session-guarded account routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admins", h.handleCreate)
	r.Post("/admin/email-binding/request", h.handleRequestBinding)
	r.Post("/admin/email-binding/confirm", h.handleConfirmBinding)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

func (h *Handler) handleCompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	result, err := h.svc.CompleteLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	admin, err := h.svc.CreateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":       admin.ID.String(),
		"username": admin.Username,
	})
}

func (h *Handler) handleRequestBinding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := h.svc.RequestEmailBinding(r.Context(), requestcontext.AdminID(r.Context()), req.Email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{"status": "code_sent"})
}

func (h *Handler) handleConfirmBinding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := h.svc.ConfirmEmailBinding(r.Context(), requestcontext.AdminID(r.Context()), req.Email, req.Code); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "email_bound"})
}

func toLoginResponse(result *service.LoginResult) map[string]any {
	resp := map[string]any{"state": string(result.State)}
	if result.Token != "" {
		resp["token"] = result.Token
	}
	if result.Email != "" {
		resp["email"] = result.Email
	}
	return resp
}
