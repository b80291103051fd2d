package store

import (
	"context"

	"civreg/internal/ledger/models"
)

// Store is the append-only ledger sink. There is deliberately no update or
// delete; immutability of financial records is a structural guarantee, not a
// convention.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	ListBySource(ctx context.Context, source models.Source, referenceID string) ([]*models.Entry, error)
}
