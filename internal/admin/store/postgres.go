package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civreg/internal/admin/models"
	"civreg/internal/platform/postgres"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists administrators. Username uniqueness rides on the
// admins_username_key constraint; Execute serializes email binding with
// SELECT ... FOR UPDATE.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const adminColumns = `id, username, password_hash, email, created_at, updated_at`

func (s *Postgres) CreateIfUsernameAvailable(ctx context.Context, a *models.Administrator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID.String(), a.Username, a.PasswordHash, a.Email, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "admins_username_key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, adminID id.AdminID) (*models.Administrator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, adminID.String())
	return scanAdmin(row)
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*models.Administrator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE username = $1`, username)
	return scanAdmin(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = $1 AND email <> ''`, email)
	return scanAdmin(row)
}

func (s *Postgres) Execute(ctx context.Context, adminID id.AdminID, validate func(*models.Administrator) error, mutate func(*models.Administrator)) (*models.Administrator, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1 FOR UPDATE`, adminID.String())
	a, err := scanAdmin(row)
	if err != nil {
		return nil, err
	}

	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)

	_, err = tx.ExecContext(ctx,
		`UPDATE admins SET email = $2, updated_at = $3 WHERE id = $1`,
		a.ID.String(), a.Email, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return a, nil
}

func scanAdmin(row interface{ Scan(dest ...any) error }) (*models.Administrator, error) {
	var a models.Administrator
	var adminID string
	err := row.Scan(&adminID, &a.Username, &a.PasswordHash, &a.Email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	u, err := uuid.Parse(adminID)
	if err != nil {
		return nil, fmt.Errorf("parse admin id: %w", err)
	}
	a.ID = id.AdminID(u)
	return &a, nil
}
