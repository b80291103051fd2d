package models

import (
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Source identifies the fee-bearing action that produced a ledger entry.
type Source string

const (
	SourceCertificate Source = "certificate"
	SourceTax         Source = "tax"
)

// Entry is an immutable financial record. Entries are appended when a
// fee-bearing action completes and are never mutated or deleted afterward;
// the store exposes no update or delete operation.
type Entry struct {
	ID          id.LedgerEntryID
	Source      Source
	ReferenceID string
	CitizenID   *id.CitizenID
	Amount      int64
	Description string
	CreatedAt   time.Time
}

// NewEntry validates and constructs a ledger entry.
//
// Invariants:
//   - Source is certificate or tax
//   - ReferenceID is non-empty (the certificate or tax record it came from)
//   - Amount is positive; zero-fee actions never reach the ledger
func NewEntry(source Source, referenceID string, citizenID *id.CitizenID, amount int64, description string, now time.Time) (*Entry, error) {
	if source != SourceCertificate && source != SourceTax {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown ledger source")
	}
	if referenceID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ledger entry requires a reference")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ledger amount must be positive")
	}
	return &Entry{
		ID:          id.NewLedgerEntryID(),
		Source:      source,
		ReferenceID: referenceID,
		CitizenID:   citizenID,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
	}, nil
}
