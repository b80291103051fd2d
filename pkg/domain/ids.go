// Package domain holds shared identifier and enum types used across registry
// modules. Typed UUIDs make cross-entity mixups a compile error instead of a
// runtime bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
)

// Typed identifiers for registry entities.
type (
	CitizenID         uuid.UUID
	HouseholdID       uuid.UUID
	CertificateID     uuid.UUID
	CertificateTypeID uuid.UUID
	TaxRecordID       uuid.UUID
	AdminID           uuid.UUID
	LedgerEntryID     uuid.UUID
)

// NationalID is the government-issued identity number, unique per citizen.
// It is an opaque string key, not a UUID.
type NationalID string

func (n NationalID) String() string { return string(n) }

// ParseNationalID validates external input at trust boundaries.
func ParseNationalID(s string) (NationalID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "national id cannot be empty")
	}
	if len(s) > 32 {
		return "", dErrors.New(dErrors.CodeValidation, "national id must be 32 characters or less")
	}
	return NationalID(s), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be empty", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is not a valid identifier", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be the zero identifier", label)
	}
	return u, nil
}

// ParseCitizenID constructs a CitizenID from external input.
func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s, "citizen id")
	return CitizenID(u), err
}

// ParseHouseholdID constructs a HouseholdID from external input.
func ParseHouseholdID(s string) (HouseholdID, error) {
	u, err := parseUUID(s, "household id")
	return HouseholdID(u), err
}

// ParseCertificateID constructs a CertificateID from external input.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

// ParseCertificateTypeID constructs a CertificateTypeID from external input.
func ParseCertificateTypeID(s string) (CertificateTypeID, error) {
	u, err := parseUUID(s, "certificate type id")
	return CertificateTypeID(u), err
}

// ParseAdminID constructs an AdminID from external input.
func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID(s, "admin id")
	return AdminID(u), err
}

func (id CitizenID) String() string         { return uuid.UUID(id).String() }
func (id HouseholdID) String() string       { return uuid.UUID(id).String() }
func (id CertificateID) String() string     { return uuid.UUID(id).String() }
func (id CertificateTypeID) String() string { return uuid.UUID(id).String() }
func (id TaxRecordID) String() string       { return uuid.UUID(id).String() }
func (id AdminID) String() string           { return uuid.UUID(id).String() }
func (id LedgerEntryID) String() string     { return uuid.UUID(id).String() }

func (id CitizenID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewCitizenID allocates a fresh citizen identifier.
func NewCitizenID() CitizenID { return CitizenID(uuid.New()) }

// NewHouseholdID allocates a fresh household identifier.
func NewHouseholdID() HouseholdID { return HouseholdID(uuid.New()) }

// NewCertificateID allocates a fresh certificate identifier.
func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }

// NewCertificateTypeID allocates a fresh certificate type identifier.
func NewCertificateTypeID() CertificateTypeID { return CertificateTypeID(uuid.New()) }

// NewTaxRecordID allocates a fresh tax record identifier.
func NewTaxRecordID() TaxRecordID { return TaxRecordID(uuid.New()) }

// NewAdminID allocates a fresh administrator identifier.
func NewAdminID() AdminID { return AdminID(uuid.New()) }

// NewLedgerEntryID allocates a fresh ledger entry identifier.
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.New()) }
