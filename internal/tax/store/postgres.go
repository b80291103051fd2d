package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civreg/internal/platform/postgres"
	"civreg/internal/tax/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists tax records. Year uniqueness rides on two partial unique
// indexes: tax_records_household_year_key for records with a household and
// tax_records_citizen_year_key for records without one. Receipt numbers are
// globally unique via tax_records_receipt_number_key.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const taxColumns = `id, citizen_id, household_id, fiscal_year, amount, receipt_number, paid_at`

func (s *Postgres) CreateIfYearUnpaid(ctx context.Context, r *models.TaxRecord) error {
	var householdID any
	if r.HouseholdID != nil {
		householdID = r.HouseholdID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_records (`+taxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID.String(), r.CitizenID.String(), householdID,
		r.FiscalYear, r.Amount, r.ReceiptNumber, r.PaidAt,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "tax_records_household_year_key"),
			postgres.IsUniqueViolation(err, "tax_records_citizen_year_key"):
			return sentinel.ErrConflict
		case postgres.IsUniqueViolation(err, "tax_records_receipt_number_key"):
			return ErrReceiptTaken
		}
		return fmt.Errorf("create tax record: %w", err)
	}
	return nil
}

func (s *Postgres) FindByCitizenYear(ctx context.Context, citizenID id.CitizenID, fiscalYear string) (*models.TaxRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taxColumns+` FROM tax_records WHERE citizen_id = $1 AND fiscal_year = $2`,
		citizenID.String(), fiscalYear)
	return scanTaxRecord(row)
}

func (s *Postgres) FindByHouseholdYear(ctx context.Context, householdID id.HouseholdID, fiscalYear string) (*models.TaxRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taxColumns+` FROM tax_records WHERE household_id = $1 AND fiscal_year = $2`,
		householdID.String(), fiscalYear)
	return scanTaxRecord(row)
}

func (s *Postgres) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.TaxRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taxColumns+` FROM tax_records WHERE citizen_id = $1 ORDER BY paid_at DESC`,
		citizenID.String())
	if err != nil {
		return nil, fmt.Errorf("list tax records: %w", err)
	}
	defer rows.Close()

	var out []*models.TaxRecord
	for rows.Next() {
		r, err := scanTaxRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaxRecord(row rowScanner) (*models.TaxRecord, error) {
	var r models.TaxRecord
	var recordID, citizenID string
	var householdID sql.NullString
	err := row.Scan(&recordID, &citizenID, &householdID, &r.FiscalYear, &r.Amount, &r.ReceiptNumber, &r.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan tax record: %w", err)
	}
	u, err := uuid.Parse(recordID)
	if err != nil {
		return nil, fmt.Errorf("parse tax record id: %w", err)
	}
	r.ID = id.TaxRecordID(u)
	cu, err := uuid.Parse(citizenID)
	if err != nil {
		return nil, fmt.Errorf("parse tax citizen id: %w", err)
	}
	r.CitizenID = id.CitizenID(cu)
	if householdID.Valid {
		hu, err := uuid.Parse(householdID.String)
		if err != nil {
			return nil, fmt.Errorf("parse tax household id: %w", err)
		}
		hid := id.HouseholdID(hu)
		r.HouseholdID = &hid
	}
	return &r, nil
}
