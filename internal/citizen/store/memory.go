package store

import (
	"context"
	"sync"

	"civreg/internal/citizen/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps citizens behind a single RWMutex. It backs development
// deployments without Postgres and doubles as the test fake.
type InMemory struct {
	mu       sync.RWMutex
	citizens map[id.CitizenID]*models.Citizen
	byNID    map[id.NationalID]id.CitizenID
}

func NewInMemory() *InMemory {
	return &InMemory{
		citizens: make(map[id.CitizenID]*models.Citizen),
		byNID:    make(map[id.NationalID]id.CitizenID),
	}
}

func (s *InMemory) CreateIfNIDAvailable(_ context.Context, citizen *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNID[citizen.NationalID]; taken {
		return sentinel.ErrConflict
	}
	cp := *citizen
	s.citizens[citizen.ID] = &cp
	s.byNID[citizen.NationalID] = citizen.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) FindByNationalID(_ context.Context, nid id.NationalID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	citizenID, ok := s.byNID[nid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.citizens[citizenID]
	return &cp, nil
}

func (s *InMemory) Execute(_ context.Context, citizenID id.CitizenID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListByHousehold(_ context.Context, householdID id.HouseholdID) ([]*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Citizen
	for _, c := range s.citizens {
		if c.HouseholdID != nil && *c.HouseholdID == householdID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context, status *models.Status) ([]*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Citizen
	for _, c := range s.citizens {
		if status != nil && c.Status != *status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// InMemoryHouseholds is the mutex-guarded household store.
type InMemoryHouseholds struct {
	mu         sync.RWMutex
	households map[id.HouseholdID]*models.Household
	byNumber   map[string]id.HouseholdID
}

func NewInMemoryHouseholds() *InMemoryHouseholds {
	return &InMemoryHouseholds{
		households: make(map[id.HouseholdID]*models.Household),
		byNumber:   make(map[string]id.HouseholdID),
	}
}

func (s *InMemoryHouseholds) CreateIfNumberAvailable(_ context.Context, household *models.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[household.Number]; taken {
		return sentinel.ErrConflict
	}
	cp := *household
	s.households[household.ID] = &cp
	s.byNumber[household.Number] = household.ID
	return nil
}

func (s *InMemoryHouseholds) FindByNumber(_ context.Context, number string) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	householdID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.households[householdID]
	return &cp, nil
}

func (s *InMemoryHouseholds) FindByID(_ context.Context, householdID id.HouseholdID) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.households[householdID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	return &cp, nil
}
