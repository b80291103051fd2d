package models

import (
	"strings"
	"time"

	citizenmodels "civreg/internal/citizen/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// CertificateType is one entry of the append-only type catalog. Kind is the
// canonical identity that payload validation keys off; the localized names
// are display data only. The catalog has no delete operation, so an issued
// certificate can always resolve its type.
type CertificateType struct {
	ID                id.CertificateTypeID
	Kind              id.CertificateKind
	Name              citizenmodels.LocalizedName
	Fee               int64
	NarrativeTemplate string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCertificateType validates and constructs a catalog entry.
func NewCertificateType(kind id.CertificateKind, name citizenmodels.LocalizedName, fee int64, narrativeTemplate string, now time.Time) (*CertificateType, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported certificate kind")
	}
	if strings.TrimSpace(name.Latin) == "" && strings.TrimSpace(name.Local) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate type name is required")
	}
	if fee < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "fee cannot be negative")
	}
	return &CertificateType{
		ID:                id.NewCertificateTypeID(),
		Kind:              kind,
		Name:              name,
		Fee:               fee,
		NarrativeTemplate: narrativeTemplate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ManualApplicant identifies a non-resident applicant who has no citizen
// record. Their certificate numbers carry the non-resident prefix.
type ManualApplicant struct {
	Name        citizenmodels.LocalizedName `json:"name"`
	FatherName  citizenmodels.LocalizedName `json:"father_name"`
	DocumentRef string                      `json:"document_ref,omitempty"`
}

func (a *ManualApplicant) validate() error {
	if strings.TrimSpace(a.Name.Latin) == "" && strings.TrimSpace(a.Name.Local) == "" {
		return dErrors.New(dErrors.CodeValidation, "applicant name is required")
	}
	return nil
}

// Certificate is the aggregate root of the certificate workflow.
//
// Invariants:
//   - exactly one of CitizenID / Applicant is set
//   - Number is empty until the certificate is issued, then globally unique
//     (enforced by the store's conditional claim)
//   - status transitions follow pending → approved → issued, pending →
//     rejected; issued certificates are immutable
type Certificate struct {
	ID        id.CertificateID
	CitizenID *id.CitizenID
	Applicant *ManualApplicant
	TypeID    id.CertificateTypeID
	Status    Status
	Number    string
	IssuedAt  *time.Time
	FeePaid   int64
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyInput carries a certificate application. CitizenID and Applicant are
// mutually exclusive.
type ApplyInput struct {
	CitizenID string           `json:"citizen_id,omitempty"`
	Applicant *ManualApplicant `json:"applicant,omitempty"`
	TypeID    string           `json:"type_id"`
	Payload   Payload          `json:"payload"`
}

// NewCertificate validates the input against the type's kind and constructs
// a certificate in the given initial status. FeePaid snapshots the type's
// fee at application time so later fee changes never reprice open
// applications.
func NewCertificate(in ApplyInput, certType *CertificateType, citizenID *id.CitizenID, initial Status, now time.Time) (*Certificate, error) {
	if citizenID == nil && in.Applicant == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a citizen reference or a manual applicant is required")
	}
	if citizenID != nil && in.Applicant != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "citizen reference and manual applicant are mutually exclusive")
	}
	if in.Applicant != nil {
		if err := in.Applicant.validate(); err != nil {
			return nil, err
		}
	}
	if err := in.Payload.Validate(certType.Kind); err != nil {
		return nil, err
	}
	if initial != StatusPending && initial != StatusIssued {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificates start pending or issued")
	}

	return &Certificate{
		ID:        id.NewCertificateID(),
		CitizenID: citizenID,
		Applicant: in.Applicant,
		TypeID:    certType.ID,
		Status:    initial,
		FeePaid:   certType.Fee,
		Payload:   in.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransition checks the requested workflow step. Use with Apply* inside
// the store's Execute callback so validation and mutation happen under one
// lock.
func (c *Certificate) CanTransition(target Status) error {
	if !c.Status.CanTransitionTo(target) {
		if c.Status.IsTerminal() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "certificate is already %s", c.Status)
		}
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot move a %s certificate to %s", c.Status, target)
	}
	return nil
}

// ApplyDecision transitions a pending certificate to approved or rejected.
func (c *Certificate) ApplyDecision(target Status, now time.Time) {
	c.Status = target
	c.UpdatedAt = now
}

// MarkIssued finalizes the certificate with its assigned number.
func (c *Certificate) MarkIssued(number string, now time.Time) {
	c.Status = StatusIssued
	c.Number = number
	c.IssuedAt = &now
	c.UpdatedAt = now
}
