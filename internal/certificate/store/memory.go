package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"civreg/internal/certificate/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps certificates behind a single RWMutex. It backs development
// deployments without Postgres and doubles as the test fake.
type InMemory struct {
	mu           sync.RWMutex
	certificates map[id.CertificateID]*models.Certificate
	byNumber     map[string]id.CertificateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		certificates: make(map[id.CertificateID]*models.Certificate),
		byNumber:     make(map[string]id.CertificateID),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.certificates[c.ID] = &cp
	return nil
}

func (s *InMemory) CreateIssued(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[c.Number]; taken {
		return ErrNumberTaken
	}
	cp := *c
	s.certificates[c.ID] = &cp
	s.byNumber[c.Number] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certificateID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.certificates[certificateID]
	return &cp, nil
}

func (s *InMemory) Execute(_ context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Work on a copy so a number collision leaves the record untouched.
	cp := *c
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)

	if cp.Number != c.Number && cp.Number != "" {
		if _, taken := s.byNumber[cp.Number]; taken {
			return nil, ErrNumberTaken
		}
		s.byNumber[cp.Number] = cp.ID
	}
	s.certificates[certificateID] = &cp
	out := cp
	return &out, nil
}

func (s *InMemory) ListByCitizen(_ context.Context, citizenID id.CitizenID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, c := range s.certificates {
		if c.CitizenID != nil && *c.CitizenID == citizenID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context, status *models.Status) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, c := range s.certificates {
		if status != nil && c.Status != *status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// InMemoryTypes is the mutex-guarded type catalog.
type InMemoryTypes struct {
	mu    sync.RWMutex
	types map[id.CertificateTypeID]*models.CertificateType
}

func NewInMemoryTypes() *InMemoryTypes {
	return &InMemoryTypes{types: make(map[id.CertificateTypeID]*models.CertificateType)}
}

func (s *InMemoryTypes) Create(_ context.Context, t *models.CertificateType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.types[t.ID] = &cp
	return nil
}

func (s *InMemoryTypes) FindByID(_ context.Context, typeID id.CertificateTypeID) (*models.CertificateType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryTypes) UpdateFee(_ context.Context, typeID id.CertificateTypeID, fee int64, now time.Time) (*models.CertificateType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[typeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	t.Fee = fee
	t.UpdatedAt = now
	cp := *t
	return &cp, nil
}

func (s *InMemoryTypes) List(_ context.Context) ([]*models.CertificateType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CertificateType, 0, len(s.types))
	for _, t := range s.types {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
