package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/tax/models"
	"civreg/internal/tax/service"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
)

// Service is the tax workflow surface the handler depends on.
type Service interface {
	IsCompliant(ctx context.Context, citizenID id.CitizenID, fiscalYear string) (*service.Compliance, error)
	Pay(ctx context.Context, citizenID id.CitizenID, fiscalYear string, amount int64) (*models.TaxRecord, error)
	History(ctx context.Context, citizenID id.CitizenID) ([]*models.TaxRecord, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterAdmin mounts the back-office tax routes; the router wraps them
// with RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/tax/payments", h.handlePay)
	r.Get("/citizens/{id}/tax-compliance", h.handleCompliance)
	r.Get("/citizens/{id}/tax-records", h.handleHistory)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CitizenID  string `json:"citizen_id"`
		FiscalYear string `json:"fiscal_year"`
		Amount     int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	citizenID, err := id.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.svc.Pay(r.Context(), citizenID, req.FiscalYear, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(record))
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	compliance, err := h.svc.IsCompliant(r.Context(), citizenID, r.URL.Query().Get("year"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]any{
		"fiscal_year": compliance.FiscalYear,
		"paid":        compliance.Paid,
	}
	if compliance.Payer != nil {
		resp["payer_id"] = compliance.Payer.String()
		resp["receipt_number"] = compliance.ReceiptNumber
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.svc.History(r.Context(), citizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toResponse(record))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": out})
}

type recordResponse struct {
	ID            string `json:"id"`
	CitizenID     string `json:"citizen_id"`
	HouseholdID   string `json:"household_id,omitempty"`
	FiscalYear    string `json:"fiscal_year"`
	Amount        int64  `json:"amount"`
	ReceiptNumber string `json:"receipt_number"`
	PaidAt        string `json:"paid_at"`
}

func toResponse(r *models.TaxRecord) recordResponse {
	resp := recordResponse{
		ID:            r.ID.String(),
		CitizenID:     r.CitizenID.String(),
		FiscalYear:    r.FiscalYear,
		Amount:        r.Amount,
		ReceiptNumber: r.ReceiptNumber,
		PaidAt:        r.PaidAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.HouseholdID != nil {
		resp.HouseholdID = r.HouseholdID.String()
	}
	return resp
}
