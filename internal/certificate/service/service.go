package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	certmetrics "civreg/internal/certificate/metrics"
	"civreg/internal/certificate/models"
	"civreg/internal/certificate/store"
	citizenmodels "civreg/internal/citizen/models"
	"civreg/internal/idgen"
	ledgermodels "civreg/internal/ledger/models"
	ledgerstore "civreg/internal/ledger/store"
	"civreg/internal/notify"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// maxNumberAttempts bounds the generate-and-claim retry loop for certificate
// numbers. Randomness alone is not trusted for uniqueness.
const maxNumberAttempts = 5

// CitizenDirectory is the slice of the citizen store the certificate module
// needs to resolve an applicant.
type CitizenDirectory interface {
	FindByID(ctx context.Context, citizenID id.CitizenID) (*citizenmodels.Citizen, error)
}

// Service orchestrates the certificate workflow: applications, the
// approve/reject decision, issuance with number assignment, the
// administrator fast path and the type catalog.
type Service struct {
	certificates store.Store
	types        store.TypeStore
	citizens     CitizenDirectory
	numbers      *idgen.Generator
	ledger       ledgerstore.Store
	logger       *slog.Logger
	publisher    notify.Publisher
	metrics      *certmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher notify.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *certmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(certificates store.Store, types store.TypeStore, citizens CitizenDirectory, numbers *idgen.Generator, ledger ledgerstore.Store, opts ...Option) *Service {
	s := &Service{
		certificates: certificates,
		types:        types,
		citizens:     citizens,
		numbers:      numbers,
		ledger:       ledger,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply files a certificate application. The payload is validated against
// the type's kind and the certificate starts pending.
func (s *Service) Apply(ctx context.Context, in models.ApplyInput) (*models.Certificate, error) {
	certType, citizen, err := s.resolveApplication(ctx, in)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var citizenID *id.CitizenID
	if citizen != nil {
		citizenID = &citizen.ID
	}
	c, err := models.NewCertificate(in, certType, citizenID, models.StatusPending, now)
	if err != nil {
		return nil, err
	}
	if err := s.certificates.Create(ctx, c); err != nil {
		return nil, wrapStoreErr(err, "failed to create certificate")
	}

	s.metrics.IncrementApplications()
	s.logAudit(ctx, "certificate_applied", "certificate_id", c.ID.String(), "kind", certType.Kind.String())
	s.emit(ctx, notify.Event{
		Title:    "New certificate application",
		Message:  fmt.Sprintf("A %s application is awaiting review", certType.Kind),
		Severity: notify.SeverityInfo,
		Link:     "/admin/certificates/" + c.ID.String(),
	})
	return c, nil
}

// Decide applies the administrator decision on a pending certificate.
func (s *Service) Decide(ctx context.Context, certificateID id.CertificateID, target models.Status) (*models.Certificate, error) {
	if target != models.StatusApproved && target != models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	now := requestcontext.Now(ctx)
	c, err := s.certificates.Execute(ctx, certificateID,
		func(c *models.Certificate) error {
			if err := c.CanTransition(target); err != nil {
				return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
			}
			return nil
		},
		func(c *models.Certificate) {
			c.ApplyDecision(target, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, wrapStoreErr(err, "failed to update certificate")
	}

	s.metrics.IncrementDecisions(string(target))
	s.logAudit(ctx, "certificate_decision",
		"certificate_id", certificateID.String(),
		"outcome", string(target),
		"admin_id", requestcontext.AdminID(ctx).String(),
	)
	return c, nil
}

// Issue finalizes an approved certificate: a number is generated and claimed
// atomically, retrying on collision, and the fee lands in the ledger.
func (s *Service) Issue(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	current, err := s.certificates.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, wrapStoreErr(err, "failed to load certificate")
	}
	generate, err := s.numberGenerator(ctx, current.CitizenID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var issued *models.Certificate
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate certificate number")
		}
		issued, err = s.certificates.Execute(ctx, certificateID,
			func(c *models.Certificate) error {
				if err := c.CanTransition(models.StatusIssued); err != nil {
					return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
				}
				return nil
			},
			func(c *models.Certificate) {
				c.MarkIssued(number, now)
			},
		)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrNumberTaken) {
			s.metrics.IncrementNumberRetries()
			s.logger.WarnContext(ctx, "certificate number collision, retrying", "attempt", attempt)
			issued = nil
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, wrapStoreErr(err, "failed to issue certificate")
	}
	if issued == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "certificate number space exhausted")
	}

	s.recordIssued(ctx, issued, now)
	return issued, nil
}

// AdminIssueDirect is the administrator fast path: the certificate is
// created directly in issued, claiming its number and writing the ledger
// entry at creation.
func (s *Service) AdminIssueDirect(ctx context.Context, in models.ApplyInput) (*models.Certificate, error) {
	certType, citizen, err := s.resolveApplication(ctx, in)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var citizenID *id.CitizenID
	if citizen != nil {
		citizenID = &citizen.ID
	}
	c, err := models.NewCertificate(in, certType, citizenID, models.StatusIssued, now)
	if err != nil {
		return nil, err
	}
	generate, err := s.numberGenerator(ctx, citizenID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate certificate number")
		}
		c.MarkIssued(number, now)
		err = s.certificates.CreateIssued(ctx, c)
		if err == nil {
			s.recordIssued(ctx, c, now)
			return c, nil
		}
		if errors.Is(err, store.ErrNumberTaken) {
			s.metrics.IncrementNumberRetries()
			s.logger.WarnContext(ctx, "certificate number collision, retrying", "attempt", attempt)
			continue
		}
		return nil, wrapStoreErr(err, "failed to create certificate")
	}
	return nil, dErrors.New(dErrors.CodeInternal, "certificate number space exhausted")
}

// Get fetches a certificate by ID for the back office.
func (s *Service) Get(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	c, err := s.certificates.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, wrapStoreErr(err, "failed to load certificate")
	}
	return c, nil
}

// List returns certificates, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *models.Status) ([]*models.Certificate, error) {
	out, err := s.certificates.List(ctx, status)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list certificates")
	}
	return out, nil
}

// ListByCitizen returns a citizen's certificates.
func (s *Service) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Certificate, error) {
	out, err := s.certificates.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list certificates")
	}
	return out, nil
}

// CreateType appends an entry to the type catalog.
func (s *Service) CreateType(ctx context.Context, kind id.CertificateKind, name citizenmodels.LocalizedName, fee int64, narrativeTemplate string) (*models.CertificateType, error) {
	t, err := models.NewCertificateType(kind, name, fee, narrativeTemplate, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, wrapStoreErr(err, "failed to create certificate type")
	}
	s.logAudit(ctx, "certificate_type_created", "type_id", t.ID.String(), "kind", kind.String())
	return t, nil
}

// UpdateFee changes a type's fee. Open applications keep the fee they
// snapshotted at application time.
func (s *Service) UpdateFee(ctx context.Context, typeID id.CertificateTypeID, fee int64) (*models.CertificateType, error) {
	if fee < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "fee cannot be negative")
	}
	t, err := s.types.UpdateFee(ctx, typeID, fee, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate type not found")
		}
		return nil, wrapStoreErr(err, "failed to update fee")
	}
	s.logAudit(ctx, "certificate_type_fee_updated", "type_id", typeID.String(), "fee", fee)
	return t, nil
}

// ListTypes returns the whole catalog, oldest first.
func (s *Service) ListTypes(ctx context.Context) ([]*models.CertificateType, error) {
	out, err := s.types.List(ctx)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list certificate types")
	}
	return out, nil
}

// resolveApplication loads the type and, when the input names a citizen,
// the citizen record. Only approved citizens may hold certificates.
func (s *Service) resolveApplication(ctx context.Context, in models.ApplyInput) (*models.CertificateType, *citizenmodels.Citizen, error) {
	typeID, err := id.ParseCertificateTypeID(in.TypeID)
	if err != nil {
		return nil, nil, err
	}
	certType, err := s.types.FindByID(ctx, typeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "unknown certificate type")
		}
		return nil, nil, wrapStoreErr(err, "failed to load certificate type")
	}

	if in.CitizenID == "" {
		return certType, nil, nil
	}
	citizenID, err := id.ParseCitizenID(in.CitizenID)
	if err != nil {
		return nil, nil, err
	}
	citizen, err := s.citizens.FindByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, nil, wrapStoreErr(err, "failed to load citizen")
	}
	if citizen.Status != citizenmodels.StatusApproved {
		return nil, nil, dErrors.New(dErrors.CodePolicyViolation, "citizen is not approved")
	}
	return certType, citizen, nil
}

// numberGenerator binds the prefix rule to the applicant: linked citizens
// get their birth year plus the resident code, manual applicants the
// current year plus the non-resident code.
func (s *Service) numberGenerator(ctx context.Context, citizenID *id.CitizenID) (func() (string, error), error) {
	if citizenID == nil {
		now := requestcontext.Now(ctx)
		return func() (string, error) { return s.numbers.ForManual(now) }, nil
	}
	citizen, err := s.citizens.FindByID(ctx, *citizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, wrapStoreErr(err, "failed to load citizen")
	}
	birthYear := citizen.BirthYear()
	return func() (string, error) { return s.numbers.ForCitizen(birthYear) }, nil
}

func (s *Service) recordIssued(ctx context.Context, c *models.Certificate, now time.Time) {
	if c.FeePaid > 0 {
		entry, err := ledgermodels.NewEntry(
			ledgermodels.SourceCertificate, c.ID.String(), c.CitizenID, c.FeePaid,
			fmt.Sprintf("certificate %s issuance fee", c.Number), now,
		)
		if err == nil {
			err = s.ledger.Append(ctx, entry)
		}
		if err != nil {
			// The certificate is already issued; a ledger failure is an
			// operational incident, not grounds to fail the issuance.
			s.logger.ErrorContext(ctx, "ledger append failed for certificate",
				"error", err, "certificate_id", c.ID.String())
		}
	}

	s.metrics.IncrementIssued()
	s.logAudit(ctx, "certificate_issued",
		"certificate_id", c.ID.String(),
		"number", c.Number,
		"admin_id", requestcontext.AdminID(ctx).String(),
	)
	s.emit(ctx, notify.Event{
		Title:    "Certificate issued",
		Message:  fmt.Sprintf("Certificate %s has been issued", c.Number),
		Severity: notify.SeveritySuccess,
		Link:     "/verify/" + c.Number,
	})
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
