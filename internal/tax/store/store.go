package store

import (
	"context"
	"errors"

	"civreg/internal/tax/models"
	id "civreg/pkg/domain"
)

// ErrReceiptTaken reports a receipt-number collision on insert. Callers retry
// with a fresh number; the fiscal-year duplicate is sentinel.ErrConflict.
var ErrReceiptTaken = errors.New("receipt number already taken")

// Store persists tax payment records.
type Store interface {
	// CreateIfYearUnpaid inserts the record unless the fiscal year is
	// already covered: keyed on (household, year) when the record carries a
	// household, else (citizen, year). Check and insert are one atomic
	// operation; year duplicates surface as sentinel.ErrConflict and receipt
	// collisions as ErrReceiptTaken.
	CreateIfYearUnpaid(ctx context.Context, record *models.TaxRecord) error

	FindByCitizenYear(ctx context.Context, citizenID id.CitizenID, fiscalYear string) (*models.TaxRecord, error)
	FindByHouseholdYear(ctx context.Context, householdID id.HouseholdID, fiscalYear string) (*models.TaxRecord, error)
	ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.TaxRecord, error)
}
