package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civreg/internal/citizen/models"
	"civreg/internal/platform/postgres"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists citizens. Uniqueness of the national ID rides on the
// citizens_national_id_key constraint; Execute serializes state transitions
// with SELECT ... FOR UPDATE.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const citizenColumns = `id, national_id, name_latin, name_local, father_latin, father_local,
	mother_latin, mother_local, phone, date_of_birth, gender, household_id,
	province, district, village, street, status, created_at, updated_at`

func (s *Postgres) CreateIfNIDAvailable(ctx context.Context, c *models.Citizen) error {
	var householdID any
	if c.HouseholdID != nil {
		householdID = c.HouseholdID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO citizens (`+citizenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		c.ID.String(), c.NationalID.String(),
		c.Name.Latin, c.Name.Local, c.FatherName.Latin, c.FatherName.Local,
		c.MotherName.Latin, c.MotherName.Local, c.Phone, c.DateOfBirth,
		string(c.Gender), householdID,
		c.Address.Province, c.Address.District, c.Address.Village, c.Address.Street,
		string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "citizens_national_id_key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create citizen: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE id = $1`, citizenID.String())
	return scanCitizen(row)
}

func (s *Postgres) FindByNationalID(ctx context.Context, nid id.NationalID) (*models.Citizen, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE national_id = $1`, nid.String())
	return scanCitizen(row)
}

func (s *Postgres) Execute(ctx context.Context, citizenID id.CitizenID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE id = $1 FOR UPDATE`, citizenID.String())
	c, err := scanCitizen(row)
	if err != nil {
		return nil, err
	}

	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	_, err = tx.ExecContext(ctx,
		`UPDATE citizens SET status = $2, updated_at = $3 WHERE id = $1`,
		c.ID.String(), string(c.Status), c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update citizen: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return c, nil
}

func (s *Postgres) ListByHousehold(ctx context.Context, householdID id.HouseholdID) ([]*models.Citizen, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE household_id = $1`, householdID.String())
	if err != nil {
		return nil, fmt.Errorf("list household citizens: %w", err)
	}
	defer rows.Close()
	return scanCitizens(rows)
}

func (s *Postgres) List(ctx context.Context, status *models.Status) ([]*models.Citizen, error) {
	query := `SELECT ` + citizenColumns + ` FROM citizens`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list citizens: %w", err)
	}
	defer rows.Close()
	return scanCitizens(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizen(row rowScanner) (*models.Citizen, error) {
	var c models.Citizen
	var citizenID, nid, gender, status string
	var householdID sql.NullString
	err := row.Scan(&citizenID, &nid,
		&c.Name.Latin, &c.Name.Local, &c.FatherName.Latin, &c.FatherName.Local,
		&c.MotherName.Latin, &c.MotherName.Local, &c.Phone, &c.DateOfBirth,
		&gender, &householdID,
		&c.Address.Province, &c.Address.District, &c.Address.Village, &c.Address.Street,
		&status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan citizen: %w", err)
	}
	u, err := uuid.Parse(citizenID)
	if err != nil {
		return nil, fmt.Errorf("parse citizen id: %w", err)
	}
	c.ID = id.CitizenID(u)
	c.NationalID = id.NationalID(nid)
	c.Gender = models.Gender(gender)
	c.Status = models.Status(status)
	if householdID.Valid {
		hu, err := uuid.Parse(householdID.String)
		if err != nil {
			return nil, fmt.Errorf("parse household id: %w", err)
		}
		hid := id.HouseholdID(hu)
		c.HouseholdID = &hid
	}
	return &c, nil
}

func scanCitizens(rows *sql.Rows) ([]*models.Citizen, error) {
	var out []*models.Citizen
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostgresHouseholds persists the household grouping entity.
type PostgresHouseholds struct {
	db *sql.DB
}

func NewPostgresHouseholds(db *sql.DB) *PostgresHouseholds {
	return &PostgresHouseholds{db: db}
}

func (s *PostgresHouseholds) CreateIfNumberAvailable(ctx context.Context, h *models.Household) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO households (id, number, created_at) VALUES ($1, $2, $3)`,
		h.ID.String(), h.Number, h.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "households_number_key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create household: %w", err)
	}
	return nil
}

func (s *PostgresHouseholds) FindByNumber(ctx context.Context, number string) (*models.Household, error) {
	return s.scanHousehold(s.db.QueryRowContext(ctx,
		`SELECT id, number, created_at FROM households WHERE number = $1`, number))
}

func (s *PostgresHouseholds) FindByID(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	return s.scanHousehold(s.db.QueryRowContext(ctx,
		`SELECT id, number, created_at FROM households WHERE id = $1`, householdID.String()))
}

func (s *PostgresHouseholds) scanHousehold(row rowScanner) (*models.Household, error) {
	var h models.Household
	var householdID string
	if err := row.Scan(&householdID, &h.Number, &h.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan household: %w", err)
	}
	u, err := uuid.Parse(householdID)
	if err != nil {
		return nil, fmt.Errorf("parse household id: %w", err)
	}
	h.ID = id.HouseholdID(u)
	return &h, nil
}
