package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

func validInput() RegisterInput {
	return RegisterInput{
		NationalID:  "1400-0102-55821",
		Name:        LocalizedName{Latin: "Farid Ahmadi", Local: "فرید احمدی"},
		FatherName:  LocalizedName{Latin: "Karim", Local: "کریم"},
		MotherName:  LocalizedName{Latin: "Zahra", Local: "زهرا"},
		Phone:       "+93700000000",
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     Address{Province: "Kabul", District: "D4", Village: "Qala-e-Fathullah"},
	}
}

func TestNewCitizen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("constructs pending citizen", func(t *testing.T) {
		c, err := NewCitizen(validInput(), StatusPending, now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, c.Status)
		assert.Equal(t, 1990, c.BirthYear())
		assert.False(t, c.ID.IsZero())
	})

	t.Run("rejects missing name", func(t *testing.T) {
		in := validInput()
		in.Name = LocalizedName{}
		_, err := NewCitizen(in, StatusPending, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects malformed date of birth", func(t *testing.T) {
		in := validInput()
		in.DateOfBirth = "01/01/1990"
		_, err := NewCitizen(in, StatusPending, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects future date of birth", func(t *testing.T) {
		in := validInput()
		in.DateOfBirth = "2030-01-01"
		_, err := NewCitizen(in, StatusPending, now)
		require.Error(t, err)
	})

	t.Run("rejects unknown gender", func(t *testing.T) {
		in := validInput()
		in.Gender = "unknown"
		_, err := NewCitizen(in, StatusPending, now)
		require.Error(t, err)
	})

	t.Run("rejects rejected as initial status", func(t *testing.T) {
		_, err := NewCitizen(validInput(), StatusRejected, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestStatusMachine(t *testing.T) {
	t.Run("pending can move to both terminal states", func(t *testing.T) {
		assert.True(t, StatusPending.CanTransitionTo(StatusApproved))
		assert.True(t, StatusPending.CanTransitionTo(StatusRejected))
	})

	t.Run("terminal states admit no transitions", func(t *testing.T) {
		for _, from := range []Status{StatusApproved, StatusRejected} {
			for _, to := range []Status{StatusPending, StatusApproved, StatusRejected} {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("decision on decided citizen fails", func(t *testing.T) {
		now := time.Now()
		c, err := NewCitizen(validInput(), StatusPending, now)
		require.NoError(t, err)

		require.NoError(t, c.CanDecide(StatusApproved))
		c.ApplyDecision(StatusApproved, now)

		err = c.CanDecide(StatusRejected)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestSameBirthDate(t *testing.T) {
	c, err := NewCitizen(validInput(), StatusPending, time.Now())
	require.NoError(t, err)

	assert.True(t, c.SameBirthDate(time.Date(1990, 1, 1, 23, 59, 0, 0, time.UTC)))
	assert.False(t, c.SameBirthDate(time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)))
}
