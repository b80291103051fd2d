package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	citizenmodels "civreg/internal/citizen/models"
	citizenstore "civreg/internal/citizen/store"
	ledgermodels "civreg/internal/ledger/models"
	ledgerstore "civreg/internal/ledger/store"
	"civreg/internal/tax/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

type fixture struct {
	svc      *Service
	citizens *citizenstore.InMemory
	ledger   *ledgerstore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	citizens := citizenstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()
	svc := New(store.NewInMemory(), citizens, ledger, time.July)
	return &fixture{svc: svc, citizens: citizens, ledger: ledger}
}

func (f *fixture) addCitizen(t *testing.T, nid string, householdID *id.HouseholdID) *citizenmodels.Citizen {
	t.Helper()
	c, err := citizenmodels.NewCitizen(citizenmodels.RegisterInput{
		NationalID:  nid,
		Name:        citizenmodels.LocalizedName{Latin: "Farid Ahmadi"},
		FatherName:  citizenmodels.LocalizedName{Latin: "Karim"},
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     citizenmodels.Address{Province: "Kabul"},
	}, citizenmodels.StatusApproved, time.Now())
	require.NoError(t, err)
	c.HouseholdID = householdID
	require.NoError(t, f.citizens.CreateIfNIDAvailable(context.Background(), c))
	return c
}

func TestPay(t *testing.T) {
	ctx := context.Background()

	t.Run("records payment with receipt and ledger entry", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)

		record, err := f.svc.Pay(ctx, c.ID, "2025-2026", 500)
		require.NoError(t, err)
		assert.Regexp(t, `^TAX-\d{6}-\d{4}$`, record.ReceiptNumber)

		entries, err := f.ledger.ListBySource(ctx, ledgermodels.SourceTax, record.ID.String())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(500), entries[0].Amount)
	})

	t.Run("second payment for the same year conflicts", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)

		_, err := f.svc.Pay(ctx, c.ID, "2025-2026", 500)
		require.NoError(t, err)

		_, err = f.svc.Pay(ctx, c.ID, "2025-2026", 500)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("household member payment blocks the rest of the household", func(t *testing.T) {
		f := newFixture(t)
		hid := id.NewHouseholdID()
		a := f.addCitizen(t, "a-1", &hid)
		b := f.addCitizen(t, "b-2", &hid)

		_, err := f.svc.Pay(ctx, a.ID, "2025-2026", 500)
		require.NoError(t, err)

		_, err = f.svc.Pay(ctx, b.ID, "2025-2026", 500)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("empty year derives the current fiscal year", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)
		fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		record, err := f.svc.Pay(requestcontext.WithTime(ctx, fixed), c.ID, "", 500)
		require.NoError(t, err)
		assert.Equal(t, "2024-2025", record.FiscalYear)
	})

	t.Run("rejects non-positive amounts and unknown citizens", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)

		_, err := f.svc.Pay(ctx, c.ID, "2025-2026", 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = f.svc.Pay(ctx, id.NewCitizenID(), "2025-2026", 500)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestIsCompliant(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid citizen is not compliant", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)

		compliance, err := f.svc.IsCompliant(ctx, c.ID, "2025-2026")
		require.NoError(t, err)
		assert.False(t, compliance.Paid)
		assert.Nil(t, compliance.Payer)
	})

	t.Run("direct payment makes the citizen compliant", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)
		record, err := f.svc.Pay(ctx, c.ID, "2025-2026", 500)
		require.NoError(t, err)

		compliance, err := f.svc.IsCompliant(ctx, c.ID, "2025-2026")
		require.NoError(t, err)
		assert.True(t, compliance.Paid)
		require.NotNil(t, compliance.Payer)
		assert.Equal(t, c.ID, *compliance.Payer)
		assert.Equal(t, record.ReceiptNumber, compliance.ReceiptNumber)
	})

	t.Run("household payment covers every member and names the payer", func(t *testing.T) {
		f := newFixture(t)
		hid := id.NewHouseholdID()
		a := f.addCitizen(t, "a-1", &hid)
		b := f.addCitizen(t, "b-2", &hid)

		_, err := f.svc.Pay(ctx, a.ID, "2025-2026", 500)
		require.NoError(t, err)

		compliance, err := f.svc.IsCompliant(ctx, b.ID, "2025-2026")
		require.NoError(t, err)
		assert.True(t, compliance.Paid)
		require.NotNil(t, compliance.Payer)
		assert.Equal(t, a.ID, *compliance.Payer)
	})

	t.Run("coverage does not leak across fiscal years", func(t *testing.T) {
		f := newFixture(t)
		c := f.addCitizen(t, "123", nil)
		_, err := f.svc.Pay(ctx, c.ID, "2024-2025", 500)
		require.NoError(t, err)

		compliance, err := f.svc.IsCompliant(ctx, c.ID, "2025-2026")
		require.NoError(t, err)
		assert.False(t, compliance.Paid)
	})
}
