package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/certificate/models"
	"civreg/internal/certificate/store"
	citizenmodels "civreg/internal/citizen/models"
	citizenstore "civreg/internal/citizen/store"
	"civreg/internal/idgen"
	ledgermodels "civreg/internal/ledger/models"
	ledgerstore "civreg/internal/ledger/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

const (
	residentCode    = "10901"
	nonResidentCode = "99909"
)

type fixture struct {
	svc      *Service
	citizens *citizenstore.InMemory
	ledger   *ledgerstore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gen, err := idgen.New(residentCode, nonResidentCode)
	require.NoError(t, err)
	citizens := citizenstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()
	svc := New(store.NewInMemory(), store.NewInMemoryTypes(), citizens, gen, ledger)
	return &fixture{svc: svc, citizens: citizens, ledger: ledger}
}

func (f *fixture) addCitizen(t *testing.T, status citizenmodels.Status) *citizenmodels.Citizen {
	t.Helper()
	c, err := citizenmodels.NewCitizen(citizenmodels.RegisterInput{
		NationalID:  "123",
		Name:        citizenmodels.LocalizedName{Latin: "Farid Ahmadi"},
		FatherName:  citizenmodels.LocalizedName{Latin: "Karim"},
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     citizenmodels.Address{Province: "Kabul"},
	}, citizenmodels.StatusPending, time.Now())
	require.NoError(t, err)
	c.Status = status
	require.NoError(t, f.citizens.CreateIfNIDAvailable(context.Background(), c))
	return c
}

func (f *fixture) addType(t *testing.T, kind id.CertificateKind, fee int64) *models.CertificateType {
	t.Helper()
	certType, err := f.svc.CreateType(context.Background(), kind,
		citizenmodels.LocalizedName{Latin: "Citizenship"}, fee, "")
	require.NoError(t, err)
	return certType
}

func narrativeInput(typeID string) models.ApplyInput {
	return models.ApplyInput{
		TypeID:  typeID,
		Payload: models.Payload{Narrative: &models.NarrativePayload{Text: "Resident of district 4."}},
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending certificate for approved citizen", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 250)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, c.Status)
		assert.Equal(t, int64(250), c.FeePaid)
		assert.Empty(t, c.Number)
	})

	t.Run("rejects unapproved citizens", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusPending)
		certType := f.addType(t, id.KindGeneral, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		_, err := f.svc.Apply(ctx, in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))
	})

	t.Run("rejects payload not matching the type kind", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindSuccession, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		_, err := f.svc.Apply(ctx, in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)

		in := narrativeInput(id.NewCertificateTypeID().String())
		in.CitizenID = citizen.ID.String()
		_, err := f.svc.Apply(ctx, in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("full apply, approve, issue flow", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 250)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.Decide(ctx, c.ID, models.StatusApproved)
		require.NoError(t, err)

		issued, err := f.svc.Issue(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusIssued, issued.Status)
		assert.Len(t, issued.Number, idgen.CertificateNumberLength)
		assert.True(t, strings.HasPrefix(issued.Number, "1990"+residentCode),
			"number %s should carry the birth year and resident code", issued.Number)
		require.NotNil(t, issued.IssuedAt)

		entries, err := f.ledger.ListBySource(ctx, ledgermodels.SourceCertificate, c.ID.String())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(250), entries[0].Amount)
	})

	t.Run("issue requires approval first", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.Issue(ctx, c.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("decisions on decided certificates conflict", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.Decide(ctx, c.ID, models.StatusRejected)
		require.NoError(t, err)

		_, err = f.svc.Decide(ctx, c.ID, models.StatusApproved)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("zero-fee issuance writes no ledger entry", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, c.ID, models.StatusApproved)
		require.NoError(t, err)
		_, err = f.svc.Issue(ctx, c.ID)
		require.NoError(t, err)

		entries, err := f.ledger.ListBySource(ctx, ledgermodels.SourceCertificate, c.ID.String())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestAdminIssueDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("manual applicant gets the non-resident prefix", func(t *testing.T) {
		f := newFixture(t)
		certType := f.addType(t, id.KindGeneral, 100)

		in := narrativeInput(certType.ID.String())
		in.Applicant = &models.ManualApplicant{Name: citizenmodels.LocalizedName{Latin: "Visitor"}}
		c, err := f.svc.AdminIssueDirect(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, models.StatusIssued, c.Status)
		assert.Len(t, c.Number, idgen.CertificateNumberLength)
		assert.Equal(t, nonResidentCode, c.Number[4:9])

		entries, err := f.ledger.ListBySource(ctx, ledgermodels.SourceCertificate, c.ID.String())
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("linked citizen gets the resident prefix", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 0)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.AdminIssueDirect(ctx, in)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c.Number, "1990"+residentCode))
	})
}

func TestTypeCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("fee update does not reprice open applications", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.addCitizen(t, citizenmodels.StatusApproved)
		certType := f.addType(t, id.KindGeneral, 250)

		in := narrativeInput(certType.ID.String())
		in.CitizenID = citizen.ID.String()
		c, err := f.svc.Apply(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.UpdateFee(ctx, certType.ID, 400)
		require.NoError(t, err)

		got, err := f.svc.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(250), got.FeePaid)
	})

	t.Run("lists types and rejects negative fees", func(t *testing.T) {
		f := newFixture(t)
		f.addType(t, id.KindGeneral, 100)
		f.addType(t, id.KindTradeLicense, 500)

		types, err := f.svc.ListTypes(ctx)
		require.NoError(t, err)
		assert.Len(t, types, 2)

		_, err = f.svc.UpdateFee(ctx, types[0].ID, -1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
