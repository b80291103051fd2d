package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/admin/store"
	otpservice "civreg/internal/otp/service"
	otpstore "civreg/internal/otp/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type capturingMailer struct {
	to   string
	body string
}

func (m *capturingMailer) Send(_ context.Context, to, _, body string) error {
	m.to, m.body = to, body
	return nil
}

func (m *capturingMailer) code(t *testing.T) string {
	t.Helper()
	match := codePattern.FindStringSubmatch(m.body)
	require.Len(t, match, 2)
	return match[1]
}

func newService(t *testing.T) (*Service, *capturingMailer) {
	t.Helper()
	mailer := &capturingMailer{}
	otp := otpservice.New(otpstore.NewInMemory(), mailer, 10*time.Minute)
	svc := New(store.NewInMemory(), otp, []byte("test-signing-key"), time.Hour)
	return svc, mailer
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.CreateAdmin(ctx, "Registrar", "long-enough-password")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(ctx, "registrar", "another-password")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = svc.CreateAdmin(ctx, "short", "tiny")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("no bound email yields a session directly", func(t *testing.T) {
		svc, _ := newService(t)
		admin, err := svc.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)

		result, err := svc.Login(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, result.State)
		require.NotEmpty(t, result.Token)

		got, err := svc.ValidateSession(result.Token)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got)
	})

	t.Run("bad username and bad password are indistinguishable", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "registrar", "wrong-password")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "invalid credentials", dErrors.MessageOf(err))

		_, err = svc.Login(ctx, "nobody", "long-enough-password")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "invalid credentials", dErrors.MessageOf(err))
	})
}

func TestSecondFactorLogin(t *testing.T) {
	ctx := context.Background()

	bind := func(t *testing.T, svc *Service, mailer *capturingMailer, adminID id.AdminID, email string) {
		t.Helper()
		require.NoError(t, svc.RequestEmailBinding(ctx, adminID, email))
		require.NoError(t, svc.ConfirmEmailBinding(ctx, adminID, email, mailer.code(t)))
	}

	t.Run("bound email forces the passcode round trip", func(t *testing.T) {
		svc, mailer := newService(t)
		admin, err := svc.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)
		bind(t, svc, mailer, admin.ID, "n.rahimi@example.org")

		result, err := svc.Login(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)
		assert.Equal(t, StateOTPPending, result.State)
		assert.Empty(t, result.Token)
		assert.Equal(t, "n***@example.org", result.Email)
		assert.Equal(t, "n.rahimi@example.org", mailer.to)

		completed, err := svc.CompleteLogin(ctx, "n.rahimi@example.org", mailer.code(t))
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, completed.State)

		got, err := svc.ValidateSession(completed.Token)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got)
	})

	t.Run("binding-purpose code cannot complete a login", func(t *testing.T) {
		svc, mailer := newService(t)
		admin, err := svc.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)

		require.NoError(t, svc.RequestEmailBinding(ctx, admin.ID, "n.rahimi@example.org"))
		_, err = svc.CompleteLogin(ctx, "n.rahimi@example.org", mailer.code(t))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
	})

	t.Run("email bound elsewhere cannot be requested", func(t *testing.T) {
		svc, mailer := newService(t)
		first, err := svc.CreateAdmin(ctx, "first", "long-enough-password")
		require.NoError(t, err)
		second, err := svc.CreateAdmin(ctx, "second", "long-enough-password")
		require.NoError(t, err)
		bind(t, svc, mailer, first.ID, "shared@example.org")

		err = svc.RequestEmailBinding(ctx, second.ID, "shared@example.org")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects garbage and foreign signatures", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.ValidateSession("not-a-token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		other := New(store.NewInMemory(), nil, []byte("different-key"), time.Hour)
		_, err = other.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)
		result, err := other.Login(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)

		_, err = svc.ValidateSession(result.Token)
		require.Error(t, err)
	})

	t.Run("rejects expired sessions", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.CreateAdmin(ctx, "registrar", "long-enough-password")
		require.NoError(t, err)

		past := requestcontext.WithTime(ctx, time.Now().Add(-2*time.Hour))
		result, err := svc.Login(past, "registrar", "long-enough-password")
		require.NoError(t, err)

		_, err = svc.ValidateSession(result.Token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
