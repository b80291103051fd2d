package store

import (
	"context"
	"errors"
	"time"

	"civreg/internal/certificate/models"
	id "civreg/pkg/domain"
)

// ErrNumberTaken reports a certificate-number collision on claim or insert.
// Callers retry with a fresh number.
var ErrNumberTaken = errors.New("certificate number already taken")

// Store persists certificates.
type Store interface {
	// Create inserts a new pending certificate.
	Create(ctx context.Context, certificate *models.Certificate) error

	// CreateIssued inserts a certificate born issued, claiming its number in
	// the same operation; collisions surface as ErrNumberTaken.
	CreateIssued(ctx context.Context, certificate *models.Certificate) error

	FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)

	// Execute runs validate and mutate on the certificate while holding the
	// record lock (mutex or SELECT FOR UPDATE). A mutate that assigns an
	// already-claimed number surfaces as ErrNumberTaken and leaves the
	// record untouched.
	Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)

	ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Certificate, error)
	List(ctx context.Context, status *models.Status) ([]*models.Certificate, error)
}

// TypeStore persists the certificate type catalog. The catalog is
// append-only: there is deliberately no delete, so issued certificates can
// always resolve their type.
type TypeStore interface {
	Create(ctx context.Context, certType *models.CertificateType) error
	FindByID(ctx context.Context, typeID id.CertificateTypeID) (*models.CertificateType, error)
	UpdateFee(ctx context.Context, typeID id.CertificateTypeID, fee int64, now time.Time) (*models.CertificateType, error)
	List(ctx context.Context) ([]*models.CertificateType, error)
}
