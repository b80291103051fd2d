package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"civreg/internal/certificate/models"
	"civreg/internal/platform/postgres"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists certificates. Number uniqueness rides on the
// certificates_number_key constraint; Execute serializes state transitions
// with SELECT ... FOR UPDATE. Payload and manual applicant are stored as
// JSONB documents.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const certificateColumns = `id, citizen_id, applicant, type_id, status, number, issued_at,
	fee_paid, payload, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, c *models.Certificate) error {
	return s.insert(ctx, c)
}

func (s *Postgres) CreateIssued(ctx context.Context, c *models.Certificate) error {
	err := s.insert(ctx, c)
	if postgres.IsUniqueViolation(err, "certificates_number_key") {
		return ErrNumberTaken
	}
	return err
}

func (s *Postgres) insert(ctx context.Context, c *models.Certificate) error {
	citizenID, applicant, number, err := encodeOptional(c)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return fmt.Errorf("encode certificate payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID.String(), citizenID, applicant, c.TypeID.String(), string(c.Status),
		number, c.IssuedAt, c.FeePaid, payload, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, certificateID.String())
	return scanCertificate(row)
}

func (s *Postgres) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE number = $1`, number)
	return scanCertificate(row)
}

func (s *Postgres) Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = $1 FOR UPDATE`, certificateID.String())
	c, err := scanCertificate(row)
	if err != nil {
		return nil, err
	}

	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	var number any
	if c.Number != "" {
		number = c.Number
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE certificates SET status = $2, number = $3, issued_at = $4, updated_at = $5 WHERE id = $1`,
		c.ID.String(), string(c.Status), number, c.IssuedAt, c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "certificates_number_key") {
			return nil, ErrNumberTaken
		}
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return c, nil
}

func (s *Postgres) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE citizen_id = $1 ORDER BY created_at DESC`,
		citizenID.String())
	if err != nil {
		return nil, fmt.Errorf("list citizen certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

func (s *Postgres) List(ctx context.Context, status *models.Status) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

func encodeOptional(c *models.Certificate) (citizenID, applicant, number any, err error) {
	if c.CitizenID != nil {
		citizenID = c.CitizenID.String()
	}
	if c.Applicant != nil {
		raw, err := json.Marshal(c.Applicant)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode certificate applicant: %w", err)
		}
		applicant = raw
	}
	if c.Number != "" {
		number = c.Number
	}
	return citizenID, applicant, number, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var c models.Certificate
	var certificateID, typeID, status string
	var citizenID, number sql.NullString
	var applicant, payload []byte
	var issuedAt sql.NullTime
	err := row.Scan(&certificateID, &citizenID, &applicant, &typeID, &status,
		&number, &issuedAt, &c.FeePaid, &payload, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	u, err := uuid.Parse(certificateID)
	if err != nil {
		return nil, fmt.Errorf("parse certificate id: %w", err)
	}
	c.ID = id.CertificateID(u)
	tu, err := uuid.Parse(typeID)
	if err != nil {
		return nil, fmt.Errorf("parse certificate type id: %w", err)
	}
	c.TypeID = id.CertificateTypeID(tu)
	c.Status = models.Status(status)
	if citizenID.Valid {
		cu, err := uuid.Parse(citizenID.String)
		if err != nil {
			return nil, fmt.Errorf("parse certificate citizen id: %w", err)
		}
		cid := id.CitizenID(cu)
		c.CitizenID = &cid
	}
	if number.Valid {
		c.Number = number.String
	}
	if issuedAt.Valid {
		t := issuedAt.Time
		c.IssuedAt = &t
	}
	if len(applicant) > 0 {
		c.Applicant = &models.ManualApplicant{}
		if err := json.Unmarshal(applicant, c.Applicant); err != nil {
			return nil, fmt.Errorf("decode certificate applicant: %w", err)
		}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &c.Payload); err != nil {
			return nil, fmt.Errorf("decode certificate payload: %w", err)
		}
	}
	return &c, nil
}

func scanCertificates(rows *sql.Rows) ([]*models.Certificate, error) {
	var out []*models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostgresTypes persists the type catalog. Only INSERT, SELECT and the fee
// UPDATE are issued; there is no DELETE path.
type PostgresTypes struct {
	db *sql.DB
}

func NewPostgresTypes(db *sql.DB) *PostgresTypes {
	return &PostgresTypes{db: db}
}

const typeColumns = `id, kind, name_latin, name_local, fee, narrative_template, created_at, updated_at`

func (s *PostgresTypes) Create(ctx context.Context, t *models.CertificateType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certificate_types (`+typeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID.String(), t.Kind.String(), t.Name.Latin, t.Name.Local,
		t.Fee, t.NarrativeTemplate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create certificate type: %w", err)
	}
	return nil
}

func (s *PostgresTypes) FindByID(ctx context.Context, typeID id.CertificateTypeID) (*models.CertificateType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+typeColumns+` FROM certificate_types WHERE id = $1`, typeID.String())
	return scanType(row)
}

func (s *PostgresTypes) UpdateFee(ctx context.Context, typeID id.CertificateTypeID, fee int64, now time.Time) (*models.CertificateType, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE certificate_types SET fee = $2, updated_at = $3 WHERE id = $1
		RETURNING `+typeColumns, typeID.String(), fee, now)
	return scanType(row)
}

func (s *PostgresTypes) List(ctx context.Context) ([]*models.CertificateType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+typeColumns+` FROM certificate_types ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list certificate types: %w", err)
	}
	defer rows.Close()

	var out []*models.CertificateType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanType(row rowScanner) (*models.CertificateType, error) {
	var t models.CertificateType
	var typeID, kind string
	err := row.Scan(&typeID, &kind, &t.Name.Latin, &t.Name.Local,
		&t.Fee, &t.NarrativeTemplate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate type: %w", err)
	}
	u, err := uuid.Parse(typeID)
	if err != nil {
		return nil, fmt.Errorf("parse certificate type id: %w", err)
	}
	t.ID = id.CertificateTypeID(u)
	t.Kind = id.CertificateKind(kind)
	return &t, nil
}
