package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civreg/internal/certificate/models"
	citizenmodels "civreg/internal/citizen/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
)

// Service is the certificate workflow surface the handler depends on.
type Service interface {
	Apply(ctx context.Context, in models.ApplyInput) (*models.Certificate, error)
	Decide(ctx context.Context, certificateID id.CertificateID, target models.Status) (*models.Certificate, error)
	Issue(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	AdminIssueDirect(ctx context.Context, in models.ApplyInput) (*models.Certificate, error)
	Get(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	List(ctx context.Context, status *models.Status) ([]*models.Certificate, error)
	ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Certificate, error)
	CreateType(ctx context.Context, kind id.CertificateKind, name citizenmodels.LocalizedName, fee int64, narrativeTemplate string) (*models.CertificateType, error)
	UpdateFee(ctx context.Context, typeID id.CertificateTypeID, fee int64) (*models.CertificateType, error)
	ListTypes(ctx context.Context) ([]*models.CertificateType, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes: applying for a
// certificate and browsing the type catalog.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/certificates/apply", h.handleApply)
	r.Get("/certificate-types", h.handleListTypes)
}

// RegisterAdmin mounts the back-office routes; the router wraps them with
// RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/certificates", h.handleList)
	r.Get("/certificates/{id}", h.handleGet)
	r.Post("/certificates/{id}/approve", h.decide(models.StatusApproved))
	r.Post("/certificates/{id}/reject", h.decide(models.StatusRejected))
	r.Post("/certificates/{id}/issue", h.handleIssue)
	r.Post("/certificates/issue-direct", h.handleIssueDirect)
	r.Get("/citizens/{id}/certificates", h.handleListByCitizen)
	r.Post("/certificate-types", h.handleCreateType)
	r.Patch("/certificate-types/{id}/fee", h.handleUpdateFee)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var in models.ApplyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	c, err := h.svc.Apply(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) decide(target models.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		c, err := h.svc.Decide(r.Context(), certificateID, target)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toResponse(c))
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Issue(r.Context(), certificateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) handleIssueDirect(w http.ResponseWriter, r *http.Request) {
	var in models.ApplyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	c, err := h.svc.AdminIssueDirect(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), certificateID)
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
	certificates, err := h.svc.List(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeCertificateList(w, certificates)
}

func (h *Handler) handleListByCitizen(w http.ResponseWriter, r *http.Request) {
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	certificates, err := h.svc.ListByCitizen(r.Context(), citizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeCertificateList(w, certificates)
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind              string                      `json:"kind"`
		Name              citizenmodels.LocalizedName `json:"name"`
		Fee               int64                       `json:"fee"`
		NarrativeTemplate string                      `json:"narrative_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	kind, err := id.ParseCertificateKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.CreateType(r.Context(), kind, req.Name, req.Fee, req.NarrativeTemplate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTypeResponse(t))
}

func (h *Handler) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	typeID, err := id.ParseCertificateTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Fee int64 `json:"fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	t, err := h.svc.UpdateFee(r.Context(), typeID, req.Fee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTypeResponse(t))
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ListTypes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]typeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, toTypeResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"types": out})
}

func writeCertificateList(w http.ResponseWriter, certificates []*models.Certificate) {
	out := make([]certificateResponse, 0, len(certificates))
	for _, c := range certificates {
		out = append(out, toResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"certificates": out})
}

type certificateResponse struct {
	ID        string                  `json:"id"`
	CitizenID string                  `json:"citizen_id,omitempty"`
	Applicant *models.ManualApplicant `json:"applicant,omitempty"`
	TypeID    string                  `json:"type_id"`
	Status    string                  `json:"status"`
	Number    string                  `json:"number,omitempty"`
	IssuedAt  string                  `json:"issued_at,omitempty"`
	FeePaid   int64                   `json:"fee_paid"`
	Payload   models.Payload          `json:"payload"`
}

func toResponse(c *models.Certificate) certificateResponse {
	resp := certificateResponse{
		ID:      c.ID.String(),
		TypeID:  c.TypeID.String(),
		Status:  string(c.Status),
		Number:  c.Number,
		FeePaid: c.FeePaid,
		Payload: c.Payload,
	}
	if c.CitizenID != nil {
		resp.CitizenID = c.CitizenID.String()
	}
	resp.Applicant = c.Applicant
	if c.IssuedAt != nil {
		resp.IssuedAt = c.IssuedAt.Format(time.RFC3339)
	}
	return resp
}

type typeResponse struct {
	ID                string                      `json:"id"`
	Kind              string                      `json:"kind"`
	Name              citizenmodels.LocalizedName `json:"name"`
	Fee               int64                       `json:"fee"`
	NarrativeTemplate string                      `json:"narrative_template,omitempty"`
}

func toTypeResponse(t *models.CertificateType) typeResponse {
	return typeResponse{
		ID:                t.ID.String(),
		Kind:              t.Kind.String(),
		Name:              t.Name,
		Fee:               t.Fee,
		NarrativeTemplate: t.NarrativeTemplate,
	}
}
