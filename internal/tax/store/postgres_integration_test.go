//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	citizenmodels "civreg/internal/citizen/models"
	citizenstore "civreg/internal/citizen/store"
	"civreg/internal/tax/models"
	"civreg/internal/tax/store"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	store      *store.Postgres
	citizens   *citizenstore.Postgres
	households *citizenstore.PostgresHouseholds

	nidSeq int
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.pg.DB)
	s.citizens = citizenstore.NewPostgres(s.pg.DB)
	s.households = citizenstore.NewPostgresHouseholds(s.pg.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) seedHousehold(number string) id.HouseholdID {
	h, err := citizenmodels.NewHousehold(number, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.households.CreateIfNumberAvailable(context.Background(), h))
	return h.ID
}

func (s *PostgresStoreSuite) seedCitizen(householdID *id.HouseholdID) id.CitizenID {
	s.nidSeq++
	c, err := citizenmodels.NewCitizen(citizenmodels.RegisterInput{
		NationalID:  fmt.Sprintf("nid-%d", s.nidSeq),
		Name:        citizenmodels.LocalizedName{Latin: "Farid Ahmadi"},
		FatherName:  citizenmodels.LocalizedName{Latin: "Karim"},
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     citizenmodels.Address{Province: "Kabul"},
	}, citizenmodels.StatusApproved, time.Now())
	s.Require().NoError(err)
	c.HouseholdID = householdID
	s.Require().NoError(s.citizens.CreateIfNIDAvailable(context.Background(), c))
	return c.ID
}

func (s *PostgresStoreSuite) record(citizenID id.CitizenID, householdID *id.HouseholdID, year, receipt string) *models.TaxRecord {
	r, err := models.NewTaxRecord(citizenID, householdID, year, 500, receipt, time.Now())
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestHouseholdYearUniqueness() {
	ctx := context.Background()
	hid := s.seedHousehold("HH-001")
	payer := s.seedCitizen(&hid)
	sibling := s.seedCitizen(&hid)

	err := s.store.CreateIfYearUnpaid(ctx, s.record(payer, &hid, "2025-2026", "TAX-202507-0001"))
	s.Require().NoError(err)

	// A different member of the same household cannot pay the same year twice.
	err = s.store.CreateIfYearUnpaid(ctx, s.record(sibling, &hid, "2025-2026", "TAX-202507-0002"))
	s.ErrorIs(err, sentinel.ErrConflict)

	// The next year is open again.
	err = s.store.CreateIfYearUnpaid(ctx, s.record(sibling, &hid, "2026-2027", "TAX-202607-0001"))
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestCitizenYearUniquenessWithoutHousehold() {
	ctx := context.Background()
	payer := s.seedCitizen(nil)
	other := s.seedCitizen(nil)

	err := s.store.CreateIfYearUnpaid(ctx, s.record(payer, nil, "2025-2026", "TAX-202507-0001"))
	s.Require().NoError(err)

	err = s.store.CreateIfYearUnpaid(ctx, s.record(payer, nil, "2025-2026", "TAX-202507-0002"))
	s.ErrorIs(err, sentinel.ErrConflict)

	// A different citizen without a household is unaffected.
	err = s.store.CreateIfYearUnpaid(ctx, s.record(other, nil, "2025-2026", "TAX-202507-0003"))
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestReceiptCollision() {
	ctx := context.Background()
	payer := s.seedCitizen(nil)
	other := s.seedCitizen(nil)

	err := s.store.CreateIfYearUnpaid(ctx, s.record(payer, nil, "2025-2026", "TAX-202507-0001"))
	s.Require().NoError(err)

	err = s.store.CreateIfYearUnpaid(ctx, s.record(other, nil, "2025-2026", "TAX-202507-0001"))
	s.ErrorIs(err, store.ErrReceiptTaken)
}

func (s *PostgresStoreSuite) TestFindByHouseholdYear() {
	ctx := context.Background()
	hid := s.seedHousehold("HH-002")
	payer := s.seedCitizen(&hid)

	_, err := s.store.FindByHouseholdYear(ctx, hid, "2025-2026")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.CreateIfYearUnpaid(ctx, s.record(payer, &hid, "2025-2026", "TAX-202507-0001")))

	found, err := s.store.FindByHouseholdYear(ctx, hid, "2025-2026")
	s.Require().NoError(err)
	s.Equal(payer, found.CitizenID)
	s.Equal("TAX-202507-0001", found.ReceiptNumber)
}

func (s *PostgresStoreSuite) TestConcurrentPaymentsAdmitOne() {
	ctx := context.Background()
	hid := s.seedHousehold("HH-003")

	const goroutines = 10
	payers := make([]id.CitizenID, goroutines)
	for i := range payers {
		payers[i] = s.seedCitizen(&hid)
	}

	var wg sync.WaitGroup
	var accepted, conflicted atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			receipt := fmt.Sprintf("TAX-202507-%04d", idx+1)
			err := s.store.CreateIfYearUnpaid(ctx, s.record(payers[idx], &hid, "2025-2026", receipt))
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), accepted.Load(), "exactly one payment should land")
	s.Equal(int32(goroutines-1), conflicted.Load())
}
