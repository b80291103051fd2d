package models

import (
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// TaxRecord is one household-tax payment. At most one record exists per
// household per fiscal year; citizens without a household are keyed
// individually. The store enforces that, not this type.
type TaxRecord struct {
	ID            id.TaxRecordID
	CitizenID     id.CitizenID
	HouseholdID   *id.HouseholdID
	FiscalYear    string
	Amount        int64
	ReceiptNumber string
	PaidAt        time.Time
}

// NewTaxRecord validates and constructs a payment record.
func NewTaxRecord(citizenID id.CitizenID, householdID *id.HouseholdID, fiscalYear string, amount int64, receiptNumber string, paidAt time.Time) (*TaxRecord, error) {
	if citizenID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tax record requires a payer")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "tax amount must be positive")
	}
	if receiptNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tax record requires a receipt number")
	}
	return &TaxRecord{
		ID:            id.NewTaxRecordID(),
		CitizenID:     citizenID,
		HouseholdID:   householdID,
		FiscalYear:    fiscalYear,
		Amount:        amount,
		ReceiptNumber: receiptNumber,
		PaidAt:        paidAt,
	}, nil
}
