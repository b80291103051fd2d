package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	certmodels "civreg/internal/certificate/models"
	citizenmodels "civreg/internal/citizen/models"
	"civreg/internal/idgen"
	verifmetrics "civreg/internal/verification/metrics"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
)

// CertificateReader is the slice of the certificate store the public lookup
// needs.
type CertificateReader interface {
	FindByNumber(ctx context.Context, number string) (*certmodels.Certificate, error)
}

// TypeReader resolves the display name of a certificate type.
type TypeReader interface {
	FindByID(ctx context.Context, typeID id.CertificateTypeID) (*certmodels.CertificateType, error)
}

// CitizenReader resolves the holder identity of an issued certificate.
type CitizenReader interface {
	FindByID(ctx context.Context, citizenID id.CitizenID) (*citizenmodels.Citizen, error)
}

// Result is what a third party verifying a certificate number learns. Only
// issued certificates expose identity; anything known but not issued comes
// back as a bare not_issued, indistinguishable between pending and rejected.
type Result struct {
	Status     string                       `json:"status"` // issued | not_issued
	Number     string                       `json:"number,omitempty"`
	TypeName   *citizenmodels.LocalizedName `json:"type_name,omitempty"`
	HolderName *citizenmodels.LocalizedName `json:"holder_name,omitempty"`
	FatherName *citizenmodels.LocalizedName `json:"father_name,omitempty"`
	IssuedAt   string                       `json:"issued_at,omitempty"`
	// Degraded marks answers served from the snapshot while the store is
	// unreachable; they may lag the registry.
	Degraded bool `json:"degraded,omitempty"`
}

// Service answers the unauthenticated verification lookup. Store reads run
// through a circuit breaker; while the store is down, previously seen
// numbers are answered from an in-process snapshot labeled degraded.
type Service struct {
	certificates CertificateReader
	types        TypeReader
	citizens     CitizenReader
	cb           *gobreaker.CircuitBreaker
	logger       *slog.Logger
	metrics      *verifmetrics.Metrics

	mu       sync.RWMutex
	snapshot map[string]Result
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *verifmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(certificates CertificateReader, types TypeReader, citizens CitizenReader, opts ...Option) *Service {
	s := &Service{
		certificates: certificates,
		types:        types,
		citizens:     citizens,
		logger:       slog.Default(),
		snapshot:     make(map[string]Result),
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "verification-store",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup verifies a certificate number for an unauthenticated third party.
func (s *Service) Lookup(ctx context.Context, number string) (*Result, error) {
	number = strings.TrimSpace(number)
	if len(number) != idgen.CertificateNumberLength || !allDigits(number) {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate number must be 17 digits")
	}

	// An unknown number is a definitive answer, not a store failure; report
	// it as a breaker success so lookup storms for bogus numbers cannot trip
	// the circuit.
	out, err := s.cb.Execute(func() (any, error) {
		result, err := s.lookup(ctx, number)
		if errors.Is(err, sentinel.ErrNotFound) {
			return (*Result)(nil), nil
		}
		return result, err
	})
	if err == nil {
		result := out.(*Result)
		if result == nil {
			s.metrics.IncrementLookups("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "no certificate with this number")
		}
		s.remember(number, *result)
		s.metrics.IncrementLookups(result.Status)
		return result, nil
	}

	// Store down or breaker open: fall back to the snapshot.
	if cached, ok := s.recall(number); ok {
		cached.Degraded = true
		s.metrics.IncrementLookups("degraded")
		s.logger.WarnContext(ctx, "serving degraded verification answer", "error", err)
		return &cached, nil
	}
	return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable, retry later")
}

func (s *Service) lookup(ctx context.Context, number string) (*Result, error) {
	c, err := s.certificates.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if c.Status != certmodels.StatusIssued {
		// Never reached with number claimed only at issuance, but direct
		// data loads may carry numbers on open records.
		return &Result{Status: "not_issued"}, nil
	}

	result := &Result{Status: "issued", Number: c.Number}
	if c.IssuedAt != nil {
		result.IssuedAt = c.IssuedAt.Format("2006-01-02")
	}
	if certType, err := s.types.FindByID(ctx, c.TypeID); err == nil {
		name := certType.Name
		result.TypeName = &name
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	switch {
	case c.CitizenID != nil:
		citizen, err := s.citizens.FindByID(ctx, *c.CitizenID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return result, nil
			}
			return nil, err
		}
		result.HolderName = &citizen.Name
		result.FatherName = &citizen.FatherName
	case c.Applicant != nil:
		name := c.Applicant.Name
		result.HolderName = &name
		father := c.Applicant.FatherName
		result.FatherName = &father
	}
	return result, nil
}

func (s *Service) remember(number string, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot[number] = result
}

func (s *Service) recall(number string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.snapshot[number]
	return result, ok
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
