package store

import (
	"context"
	"sync"

	"civreg/internal/admin/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps administrators behind a single RWMutex. It backs
// development deployments without Postgres and doubles as the test fake.
type InMemory struct {
	mu         sync.RWMutex
	admins     map[id.AdminID]*models.Administrator
	byUsername map[string]id.AdminID
}

func NewInMemory() *InMemory {
	return &InMemory{
		admins:     make(map[id.AdminID]*models.Administrator),
		byUsername: make(map[string]id.AdminID),
	}
}

func (s *InMemory) CreateIfUsernameAvailable(_ context.Context, admin *models.Administrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[admin.Username]; taken {
		return sentinel.ErrConflict
	}
	cp := *admin
	s.admins[admin.ID] = &cp
	s.byUsername[admin.Username] = admin.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, adminID id.AdminID) (*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[adminID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adminID, ok := s.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.admins[adminID]
	return &cp, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.Email != "" && a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Execute(_ context.Context, adminID id.AdminID, validate func(*models.Administrator) error, mutate func(*models.Administrator)) (*models.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)
	cp := *a
	return &cp, nil
}
