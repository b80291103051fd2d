package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	citizenmodels "civreg/internal/citizen/models"
	"civreg/internal/idgen"
	ledgermodels "civreg/internal/ledger/models"
	ledgerstore "civreg/internal/ledger/store"
	"civreg/internal/notify"
	taxmetrics "civreg/internal/tax/metrics"
	"civreg/internal/tax/models"
	"civreg/internal/tax/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// maxReceiptAttempts bounds the generate-and-insert retry loop for receipt
// numbers.
const maxReceiptAttempts = 5

// CitizenDirectory is the slice of the citizen store the tax module needs to
// resolve a payer and their household.
type CitizenDirectory interface {
	FindByID(ctx context.Context, citizenID id.CitizenID) (*citizenmodels.Citizen, error)
}

// Compliance is the answer to "has this citizen's household tax been paid for
// the year". Payer names who actually paid, which for household members may
// be a different citizen.
type Compliance struct {
	FiscalYear    string
	Paid          bool
	Payer         *id.CitizenID
	ReceiptNumber string
}

// Service orchestrates household tax payments and compliance checks. Payment
// uniqueness is keyed per household per fiscal year when the payer belongs to
// a household, so any member's payment covers the whole household.
type Service struct {
	records    store.Store
	citizens   CitizenDirectory
	ledger     ledgerstore.Store
	startMonth time.Month
	logger     *slog.Logger
	publisher  notify.Publisher
	metrics    *taxmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher notify.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *taxmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. startMonth is the first month of the fiscal year.
func New(records store.Store, citizens CitizenDirectory, ledger ledgerstore.Store, startMonth time.Month, opts ...Option) *Service {
	s := &Service{
		records:    records,
		citizens:   citizens,
		ledger:     ledger,
		startMonth: startMonth,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentFiscalYear labels the fiscal year the request falls into.
func (s *Service) CurrentFiscalYear(ctx context.Context) string {
	return models.FiscalYear(requestcontext.Now(ctx), s.startMonth)
}

// IsCompliant reports whether the citizen's tax is covered for the fiscal
// year: first by their own payment, then by any payment recorded against
// their household. An empty year means the current fiscal year.
func (s *Service) IsCompliant(ctx context.Context, citizenID id.CitizenID, fiscalYear string) (*Compliance, error) {
	fiscalYear, err := s.resolveYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}

	citizen, err := s.citizens.FindByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, wrapStoreErr(err, "failed to load citizen")
	}

	record, err := s.records.FindByCitizenYear(ctx, citizenID, fiscalYear)
	if err == nil {
		s.metrics.IncrementComplianceChecks("paid")
		return &Compliance{FiscalYear: fiscalYear, Paid: true, Payer: &record.CitizenID, ReceiptNumber: record.ReceiptNumber}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapStoreErr(err, "failed to check tax record")
	}

	if citizen.HouseholdID != nil {
		record, err := s.records.FindByHouseholdYear(ctx, *citizen.HouseholdID, fiscalYear)
		if err == nil {
			s.metrics.IncrementComplianceChecks("paid")
			return &Compliance{FiscalYear: fiscalYear, Paid: true, Payer: &record.CitizenID, ReceiptNumber: record.ReceiptNumber}, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, wrapStoreErr(err, "failed to check household tax record")
		}
	}

	s.metrics.IncrementComplianceChecks("unpaid")
	return &Compliance{FiscalYear: fiscalYear, Paid: false}, nil
}

// Pay records a tax payment for the citizen's household (or the citizen
// alone when they have none). A second payment for an already-covered year
// returns Conflict. An empty year means the current fiscal year.
func (s *Service) Pay(ctx context.Context, citizenID id.CitizenID, fiscalYear string, amount int64) (*models.TaxRecord, error) {
	fiscalYear, err := s.resolveYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "tax amount must be positive")
	}

	citizen, err := s.citizens.FindByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, wrapStoreErr(err, "failed to load citizen")
	}

	now := requestcontext.Now(ctx)
	record, err := s.insertWithFreshReceipt(ctx, citizen, fiscalYear, amount, now)
	if err != nil {
		return nil, err
	}

	s.appendLedgerEntry(ctx, record, now)
	s.metrics.IncrementPayments()
	s.logAudit(ctx, "tax_paid",
		"citizen_id", citizenID.String(),
		"fiscal_year", fiscalYear,
		"receipt_number", record.ReceiptNumber,
	)
	s.emit(ctx, notify.Event{
		Title:    "Tax payment recorded",
		Message:  fmt.Sprintf("Receipt %s covers fiscal year %s", record.ReceiptNumber, fiscalYear),
		Severity: notify.SeveritySuccess,
		Link:     "/admin/citizens/" + citizenID.String(),
	})
	return record, nil
}

// History lists the citizen's own payment records, newest first.
func (s *Service) History(ctx context.Context, citizenID id.CitizenID) ([]*models.TaxRecord, error) {
	out, err := s.records.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list tax records")
	}
	return out, nil
}

// insertWithFreshReceipt runs the generate-and-insert loop. Receipt numbers
// are random, so a collision just means another draw; the fiscal-year
// conflict is the caller's answer and is not retried.
func (s *Service) insertWithFreshReceipt(ctx context.Context, citizen *citizenmodels.Citizen, fiscalYear string, amount int64, now time.Time) (*models.TaxRecord, error) {
	for attempt := 1; attempt <= maxReceiptAttempts; attempt++ {
		receipt, err := idgen.ReceiptNumber(now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate receipt number")
		}
		record, err := models.NewTaxRecord(citizen.ID, citizen.HouseholdID, fiscalYear, amount, receipt, now)
		if err != nil {
			return nil, err
		}
		err = s.records.CreateIfYearUnpaid(ctx, record)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "tax already paid for this fiscal year")
		}
		if errors.Is(err, store.ErrReceiptTaken) {
			s.logger.WarnContext(ctx, "receipt number collision, retrying", "attempt", attempt)
			continue
		}
		return nil, wrapStoreErr(err, "failed to create tax record")
	}
	return nil, dErrors.New(dErrors.CodeInternal, "receipt number space exhausted")
}

func (s *Service) appendLedgerEntry(ctx context.Context, record *models.TaxRecord, now time.Time) {
	entry, err := ledgermodels.NewEntry(
		ledgermodels.SourceTax, record.ID.String(), &record.CitizenID, record.Amount,
		fmt.Sprintf("household tax %s, receipt %s", record.FiscalYear, record.ReceiptNumber), now,
	)
	if err == nil {
		err = s.ledger.Append(ctx, entry)
	}
	if err != nil {
		// The payment record is already committed; a ledger failure is an
		// operational incident, not grounds to fail the payment.
		s.logger.ErrorContext(ctx, "ledger append failed for tax payment",
			"error", err, "tax_record_id", record.ID.String())
	}
}

func (s *Service) resolveYear(ctx context.Context, fiscalYear string) (string, error) {
	if fiscalYear == "" {
		return s.CurrentFiscalYear(ctx), nil
	}
	return models.ParseFiscalYear(fiscalYear)
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	if s.publisher == nil {
		return
	}
	event.EmittedAt = requestcontext.Now(ctx)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "notification emission failed", "error", err, "title", event.Title)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func wrapStoreErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "registry store unavailable, retry later")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
