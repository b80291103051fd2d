package store

import (
	"context"
	"sync"

	"civreg/internal/tax/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

type citizenYearKey struct {
	citizenID id.CitizenID
	year      string
}

type householdYearKey struct {
	householdID id.HouseholdID
	year        string
}

// InMemory keeps tax records behind a single RWMutex. It backs development
// deployments without Postgres and doubles as the test fake.
type InMemory struct {
	mu          sync.RWMutex
	records     map[id.TaxRecordID]*models.TaxRecord
	byCitizen   map[citizenYearKey]id.TaxRecordID
	byHousehold map[householdYearKey]id.TaxRecordID
	byReceipt   map[string]id.TaxRecordID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:     make(map[id.TaxRecordID]*models.TaxRecord),
		byCitizen:   make(map[citizenYearKey]id.TaxRecordID),
		byHousehold: make(map[householdYearKey]id.TaxRecordID),
		byReceipt:   make(map[string]id.TaxRecordID),
	}
}

func (s *InMemory) CreateIfYearUnpaid(_ context.Context, record *models.TaxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.HouseholdID != nil {
		key := householdYearKey{*record.HouseholdID, record.FiscalYear}
		if _, taken := s.byHousehold[key]; taken {
			return sentinel.ErrConflict
		}
	} else {
		key := citizenYearKey{record.CitizenID, record.FiscalYear}
		if _, taken := s.byCitizen[key]; taken {
			return sentinel.ErrConflict
		}
	}
	if _, taken := s.byReceipt[record.ReceiptNumber]; taken {
		return ErrReceiptTaken
	}

	cp := *record
	s.records[record.ID] = &cp
	s.byReceipt[record.ReceiptNumber] = record.ID
	if record.HouseholdID != nil {
		s.byHousehold[householdYearKey{*record.HouseholdID, record.FiscalYear}] = record.ID
	} else {
		s.byCitizen[citizenYearKey{record.CitizenID, record.FiscalYear}] = record.ID
	}
	return nil
}

func (s *InMemory) FindByCitizenYear(_ context.Context, citizenID id.CitizenID, fiscalYear string) (*models.TaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// A household payment still names the citizen who paid, so scan rather
	// than rely on the citizen-keyed index alone.
	for _, r := range s.records {
		if r.CitizenID == citizenID && r.FiscalYear == fiscalYear {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByHouseholdYear(_ context.Context, householdID id.HouseholdID, fiscalYear string) (*models.TaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recordID, ok := s.byHousehold[householdYearKey{householdID, fiscalYear}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.records[recordID]
	return &cp, nil
}

func (s *InMemory) ListByCitizen(_ context.Context, citizenID id.CitizenID) ([]*models.TaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TaxRecord
	for _, r := range s.records {
		if r.CitizenID == citizenID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
