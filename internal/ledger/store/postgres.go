package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"civreg/internal/ledger/models"
	id "civreg/pkg/domain"
)

// Postgres persists ledger entries. Only INSERT and SELECT are issued; the
// ledger_entries table carries no UPDATE path anywhere in the codebase.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, entry *models.Entry) error {
	var citizenID any
	if entry.CitizenID != nil {
		citizenID = entry.CitizenID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, source, reference_id, citizen_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID.String(), string(entry.Source), entry.ReferenceID, citizenID,
		entry.Amount, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListBySource(ctx context.Context, source models.Source, referenceID string) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, reference_id, citizen_id, amount, description, created_at
		FROM ledger_entries
		WHERE source = $1 AND reference_id = $2
		ORDER BY created_at`,
		string(source), referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		var e models.Entry
		var entryID, src string
		var citizenID sql.NullString
		if err := rows.Scan(&entryID, &src, &e.ReferenceID, &citizenID, &e.Amount, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		u, err := uuid.Parse(entryID)
		if err != nil {
			return nil, fmt.Errorf("parse ledger entry id: %w", err)
		}
		e.ID = id.LedgerEntryID(u)
		e.Source = models.Source(src)
		if citizenID.Valid {
			cu, err := uuid.Parse(citizenID.String)
			if err != nil {
				return nil, fmt.Errorf("parse ledger citizen id: %w", err)
			}
			cid := id.CitizenID(cu)
			e.CitizenID = &cid
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
