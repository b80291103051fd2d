package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/citizen/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
)

// Service is the citizen workflow surface the handler depends on.
type Service interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.Citizen, error)
	AdminRegister(ctx context.Context, in models.RegisterInput) (*models.Citizen, error)
	SetStatus(ctx context.Context, citizenID id.CitizenID, target models.Status) (*models.Citizen, error)
	Identify(ctx context.Context, nationalID, dateOfBirth string) (*models.Citizen, error)
	Get(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error)
	List(ctx context.Context, status *models.Status) ([]*models.Citizen, error)
}

// Handler exposes the citizen workflow over HTTP. Public routes cover
// self-service application and identification; admin routes cover direct
// entry and the approval decision.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/citizens/register", h.handleRegister)
	r.Post("/citizens/identify", h.handleIdentify)
}

// RegisterAdmin mounts the back-office routes; the router wraps them with
// RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/citizens", h.handleAdminRegister)
	r.Get("/citizens", h.handleList)
	r.Get("/citizens/{id}", h.handleGet)
	r.Post("/citizens/{id}/status", h.handleSetStatus)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	c, err := h.svc.Register(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	c, err := h.svc.AdminRegister(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID  string `json:"national_id"`
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	c, err := h.svc.Identify(r.Context(), req.NationalID, req.DateOfBirth)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	target, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if target == models.StatusPending {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected"))
		return
	}
	c, err := h.svc.SetStatus(r.Context(), citizenID, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), citizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = &st
	}
	citizens, err := h.svc.List(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]citizenResponse, 0, len(citizens))
	for _, c := range citizens {
		out = append(out, toResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"citizens": out})
}

type citizenResponse struct {
	ID          string               `json:"id"`
	NationalID  string               `json:"national_id"`
	Name        models.LocalizedName `json:"name"`
	FatherName  models.LocalizedName `json:"father_name"`
	MotherName  models.LocalizedName `json:"mother_name"`
	Phone       string               `json:"phone,omitempty"`
	DateOfBirth string               `json:"date_of_birth"`
	Gender      string               `json:"gender"`
	HouseholdID string               `json:"household_id,omitempty"`
	Address     models.Address       `json:"address"`
	Status      string               `json:"status"`
}

func toResponse(c *models.Citizen) citizenResponse {
	resp := citizenResponse{
		ID:          c.ID.String(),
		NationalID:  c.NationalID.String(),
		Name:        c.Name,
		FatherName:  c.FatherName,
		MotherName:  c.MotherName,
		Phone:       c.Phone,
		DateOfBirth: c.DateOfBirth.Format("2006-01-02"),
		Gender:      string(c.Gender),
		Address:     c.Address,
		Status:      string(c.Status),
	}
	if c.HouseholdID != nil {
		resp.HouseholdID = c.HouseholdID.String()
	}
	return resp
}
