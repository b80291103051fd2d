package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/citizen/models"
	"civreg/internal/citizen/store"
	"civreg/internal/notify"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

type capturingPublisher struct {
	events []notify.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event notify.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newService(t *testing.T) (*Service, *capturingPublisher) {
	t.Helper()
	pub := &capturingPublisher{}
	svc := New(store.NewInMemory(), store.NewInMemoryHouseholds(), WithPublisher(pub))
	return svc, pub
}

func input(nid string) models.RegisterInput {
	return models.RegisterInput{
		NationalID:  nid,
		Name:        models.LocalizedName{Latin: "Farid Ahmadi"},
		FatherName:  models.LocalizedName{Latin: "Karim"},
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     models.Address{Province: "Kabul"},
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending citizen and emits notification", func(t *testing.T) {
		svc, pub := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, c.Status)
		require.Len(t, pub.events, 1)
		assert.Equal(t, notify.SeverityInfo, pub.events[0].Severity)
	})

	t.Run("duplicate national id returns conflict", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)

		_, err = svc.Register(ctx, input("123"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("household number is resolved to one shared household", func(t *testing.T) {
		svc, _ := newService(t)
		inA := input("a-1")
		inA.HouseholdNumber = "H-12"
		inB := input("b-2")
		inB.HouseholdNumber = "H-12"

		a, err := svc.Register(ctx, inA)
		require.NoError(t, err)
		b, err := svc.Register(ctx, inB)
		require.NoError(t, err)

		require.NotNil(t, a.HouseholdID)
		require.NotNil(t, b.HouseholdID)
		assert.Equal(t, *a.HouseholdID, *b.HouseholdID)
	})
}

func TestAdminRegister(t *testing.T) {
	svc, _ := newService(t)
	c, err := svc.AdminRegister(context.Background(), input("admin-entered"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, c.Status)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("approves pending citizen", func(t *testing.T) {
		svc, _ := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)

		updated, err := svc.SetStatus(ctx, c.ID, models.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, updated.Status)
	})

	t.Run("decision is terminal", func(t *testing.T) {
		svc, _ := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)

		_, err = svc.SetStatus(ctx, c.ID, models.StatusRejected)
		require.NoError(t, err)

		_, err = svc.SetStatus(ctx, c.ID, models.StatusApproved)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown citizen returns not found", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.SetStatus(ctx, id.NewCitizenID(), models.StatusApproved)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()

	t.Run("full approval flow", func(t *testing.T) {
		svc, _ := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)

		// Pending applications are visible as a policy violation, not a miss.
		_, err = svc.Identify(ctx, "123", "1990-01-01")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))

		_, err = svc.SetStatus(ctx, c.ID, models.StatusApproved)
		require.NoError(t, err)

		found, err := svc.Identify(ctx, "123", "1990-01-01")
		require.NoError(t, err)
		assert.Equal(t, c.ID, found.ID)
	})

	t.Run("rejected application yields distinct policy violation", func(t *testing.T) {
		svc, _ := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)
		_, err = svc.SetStatus(ctx, c.ID, models.StatusRejected)
		require.NoError(t, err)

		_, err = svc.Identify(ctx, "123", "1990-01-01")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))
		assert.Contains(t, err.Error(), "rejected")
	})

	t.Run("wrong date of birth is indistinguishable from no record", func(t *testing.T) {
		svc, _ := newService(t)
		c, err := svc.Register(ctx, input("123"))
		require.NoError(t, err)
		_, err = svc.SetStatus(ctx, c.ID, models.StatusApproved)
		require.NoError(t, err)

		_, err = svc.Identify(ctx, "123", "1991-01-01")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = svc.Identify(ctx, "does-not-exist", "1990-01-01")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRequestScopedTime(t *testing.T) {
	svc, _ := newService(t)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)

	c, err := svc.Register(ctx, input("123"))
	require.NoError(t, err)
	assert.Equal(t, fixed, c.CreatedAt)
}
