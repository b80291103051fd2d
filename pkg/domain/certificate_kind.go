package domain

import dErrors "civreg/pkg/domain-errors"

// CertificateKind is the canonical identity of a certificate type. Payload
// validation and issuance rules key off this value; localized display names
// are carried as data on the type and never re-derived from string matching.
//
// Usage: construct via ParseCertificateKind at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type CertificateKind string

const (
	// KindTradeLicense requires business name, address, type and capital.
	KindTradeLicense CertificateKind = "trade_license"
	// KindSuccession requires the deceased identity plus an ordered,
	// non-empty list of heirs.
	KindSuccession CertificateKind = "succession"
	// KindGeneral accepts a free-form narrative payload. All certificate
	// types without dedicated fields fall here.
	KindGeneral CertificateKind = "general"
)

// validCertificateKinds is the single source of truth for supported kinds.
var validCertificateKinds = map[CertificateKind]bool{
	KindTradeLicense: true,
	KindSuccession:   true,
	KindGeneral:      true,
}

// ParseCertificateKind constructs a CertificateKind from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseCertificateKind(s string) (CertificateKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "certificate kind cannot be empty")
	}
	k := CertificateKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported certificate kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k CertificateKind) IsValid() bool {
	return validCertificateKinds[k]
}

func (k CertificateKind) String() string { return string(k) }
