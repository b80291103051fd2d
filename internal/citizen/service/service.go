package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	citizenmetrics "civreg/internal/citizen/metrics"
	"civreg/internal/citizen/models"
	"civreg/internal/citizen/store"
	"civreg/internal/notify"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// Service orchestrates the citizen approval workflow: public self-service
// applications, administrator entries, the approve/reject decision and the
// public Identify lookup.
type Service struct {
	citizens   store.Store
	households store.HouseholdStore
	logger     *slog.Logger
	publisher  notify.Publisher
	metrics    *citizenmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher notify.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *citizenmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(citizens store.Store, households store.HouseholdStore, opts ...Option) *Service {
	s := &Service{citizens: citizens, households: households, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register files a public self-service application. The citizen starts
// pending and stays invisible to Identify until an administrator approves.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.Citizen, error) {
	c, err := s.create(ctx, in, models.StatusPending)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRegistered()
	s.logAudit(ctx, "citizen_registered", "citizen_id", c.ID.String())
	s.emit(ctx, notify.Event{
		Title:    "New citizen application",
		Message:  fmt.Sprintf("Application %s is awaiting review", c.NationalID),
		Severity: notify.SeverityInfo,
		Link:     "/admin/citizens/" + c.ID.String(),
	})
	return c, nil
}

// AdminRegister files a record on behalf of an administrator; it is approved
// immediately.
func (s *Service) AdminRegister(ctx context.Context, in models.RegisterInput) (*models.Citizen, error) {
	c, err := s.create(ctx, in, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRegistered()
	s.logAudit(ctx, "citizen_admin_registered",
		"citizen_id", c.ID.String(),
		"admin_id", requestcontext.AdminID(ctx).String(),
	)
	return c, nil
}

func (s *Service) create(ctx context.Context, in models.RegisterInput, initial models.Status) (*models.Citizen, error) {
	in.Normalize()
	now := requestcontext.Now(ctx)

	c, err := models.NewCitizen(in, initial, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if in.HouseholdNumber != "" {
		householdID, err := s.resolveHousehold(ctx, in.HouseholdNumber, now)
		if err != nil {
			return nil, err
		}
		c.HouseholdID = &householdID
	}

	if err := s.citizens.CreateIfNIDAvailable(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "national id is already registered")
		}
		return nil, wrapStoreErr(err, "failed to create citizen")
	}
	return c, nil
}

// resolveHousehold finds or creates the household for a number. A concurrent
// create losing the insert race falls back to the winner's row.
func (s *Service) resolveHousehold(ctx context.Context, number string, now time.Time) (id.HouseholdID, error) {
	number = strings.TrimSpace(number)
	h, err := s.households.FindByNumber(ctx, number)
	if err == nil {
		return h.ID, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return id.HouseholdID{}, wrapStoreErr(err, "failed to resolve household")
	}

	fresh, err := models.NewHousehold(number, now)
	if err != nil {
		return id.HouseholdID{}, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.households.CreateIfNumberAvailable(ctx, fresh); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			h, err := s.households.FindByNumber(ctx, number)
			if err != nil {
				return id.HouseholdID{}, wrapStoreErr(err, "failed to resolve household")
			}
			return h.ID, nil
		}
		return id.HouseholdID{}, wrapStoreErr(err, "failed to create household")
	}
	return fresh.ID, nil
}

// SetStatus applies the administrator decision. The transition is terminal;
// deciding an already-decided application returns Conflict.
func (s *Service) SetStatus(ctx context.Context, citizenID id.CitizenID, target models.Status) (*models.Citizen, error) {
	now := requestcontext.Now(ctx)
	c, err := s.citizens.Execute(ctx, citizenID,
		func(c *models.Citizen) error {
			if err := c.CanDecide(target); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
				}
				return err
			}
			return nil
		},
		func(c *models.Citizen) {
			c.ApplyDecision(target, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, err
		}
		return nil, wrapStoreErr(err, "failed to update citizen status")
	}

	s.metrics.IncrementDecided(string(target))
	s.logAudit(ctx, "citizen_decision",
		"citizen_id", citizenID.String(),
		"outcome", string(target),
		"admin_id", requestcontext.AdminID(ctx).String(),
	)
	return c, nil
}

// Identify is the public lookup by national ID and date of birth. Only
// approved citizens match; pending and rejected applications surface as
// policy violations with distinct messages.
func (s *Service) Identify(ctx context.Context, nationalID, dateOfBirth string) (*models.Citizen, error) {
	start := time.Now()
	defer s.metrics.ObserveIdentify(start)

	nid, err := id.ParseNationalID(strings.TrimSpace(nationalID))
	if err != nil {
		return nil, err
	}
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(dateOfBirth))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "date of birth must be formatted 2006-01-02")
	}

	c, err := s.citizens.FindByNationalID(ctx, nid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no matching citizen record")
		}
		return nil, wrapStoreErr(err, "failed to look up citizen")
	}
	if !c.SameBirthDate(dob) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no matching citizen record")
	}

	switch c.Status {
	case models.StatusPending:
		return nil, dErrors.New(dErrors.CodePolicyViolation, "application is pending approval")
	case models.StatusRejected:
		return nil, dErrors.New(dErrors.CodePolicyViolation, "application was rejected")
	}
	return c, nil
}

// Get fetches a citizen by ID for the back office.
func (s *Service) Get(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	c, err := s.citizens.FindByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, wrapStoreErr(err, "failed to load citizen")
	}
	return c, nil
}

// List returns citizens, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *models.Status) ([]*models.Citizen, error) {
	out, err := s.citizens.List(ctx, status)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list citizens")
	}
	return out, nil
}

// HouseholdMembers returns all citizens sharing a household. The tax module
// consumes this for the shared-payment compliance check.
func (s *Service) HouseholdMembers(ctx context.Context, householdID id.HouseholdID) ([]*models.Citizen, error) {
	out, err := s.citizens.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list household members")
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	if s.publisher == nil {
		return
	}
	event.EmittedAt = requestcontext.Now(ctx)
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Best effort only. A dead sink must never fail a registration.
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
