package store

import (
	"context"

	"civreg/internal/admin/models"
	id "civreg/pkg/domain"
)

// Store persists administrator accounts.
type Store interface {
	// CreateIfUsernameAvailable inserts the administrator unless the
	// username is taken; duplicates surface as sentinel.ErrConflict.
	CreateIfUsernameAvailable(ctx context.Context, admin *models.Administrator) error

	FindByID(ctx context.Context, adminID id.AdminID) (*models.Administrator, error)
	FindByUsername(ctx context.Context, username string) (*models.Administrator, error)
	FindByEmail(ctx context.Context, email string) (*models.Administrator, error)

	// Execute runs validate and mutate on the administrator while holding
	// the record lock, so email binding is an atomic check-then-set.
	Execute(ctx context.Context, adminID id.AdminID, validate func(*models.Administrator) error, mutate func(*models.Administrator)) (*models.Administrator, error)
}
