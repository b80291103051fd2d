package store

import (
	"context"

	"civreg/internal/citizen/models"
	id "civreg/pkg/domain"
)

// Store persists citizens. Implementations return sentinel errors
// (pkg/platform/sentinel) which the service translates into domain errors.
type Store interface {
	// CreateIfNIDAvailable inserts the citizen unless the national ID is
	// already taken. The check and the insert are one atomic operation;
	// duplicates surface as sentinel.ErrConflict.
	CreateIfNIDAvailable(ctx context.Context, citizen *models.Citizen) error

	FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error)
	FindByNationalID(ctx context.Context, nid id.NationalID) (*models.Citizen, error)

	// Execute runs validate and mutate on the citizen while holding the
	// record lock (mutex or SELECT FOR UPDATE), so state transitions are
	// atomic check-then-set operations.
	Execute(ctx context.Context, citizenID id.CitizenID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error)

	ListByHousehold(ctx context.Context, householdID id.HouseholdID) ([]*models.Citizen, error)
	List(ctx context.Context, status *models.Status) ([]*models.Citizen, error)
}

// HouseholdStore persists the household grouping entity.
type HouseholdStore interface {
	// CreateIfNumberAvailable inserts the household unless the number is
	// taken; duplicates surface as sentinel.ErrConflict.
	CreateIfNumberAvailable(ctx context.Context, household *models.Household) error
	FindByNumber(ctx context.Context, number string) (*models.Household, error)
	FindByID(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
}
