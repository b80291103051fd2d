package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/otp/models"
	"civreg/internal/otp/store"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type capturingMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *capturingMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func (m *capturingMailer) code(t *testing.T) string {
	t.Helper()
	match := codePattern.FindStringSubmatch(m.body)
	require.Len(t, match, 2, "mail body should carry a six-digit code")
	return match[1]
}

func newService(mailer Mailer) *Service {
	return New(store.NewInMemory(), mailer, 10*time.Minute)
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("mails a six-digit code with greeting and device", func(t *testing.T) {
		mailer := &capturingMailer{}
		svc := newService(mailer)
		ctx := requestcontext.WithClientMetadata(ctx, "203.0.113.9",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

		require.NoError(t, svc.Issue(ctx, "n.rahimi@example.org", models.PurposeLogin))
		assert.Equal(t, "n.rahimi@example.org", mailer.to)
		assert.Contains(t, mailer.body, "Dear N Rahimi")
		assert.Contains(t, mailer.body, "Chrome on Linux")
		mailer.code(t)
	})

	t.Run("mail transport failure aborts issuance", func(t *testing.T) {
		svc := newService(&capturingMailer{err: errors.New("smtp down")})
		err := svc.Issue(ctx, "n.rahimi@example.org", models.PurposeLogin)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		svc := newService(&capturingMailer{})
		err := svc.Issue(ctx, "not-an-address", models.PurposeLogin)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code verifies exactly once", func(t *testing.T) {
		mailer := &capturingMailer{}
		svc := newService(mailer)
		require.NoError(t, svc.Issue(ctx, "n.rahimi@example.org", models.PurposeLogin))
		code := mailer.code(t)

		purpose, err := svc.Verify(ctx, "N.Rahimi@example.org", code)
		require.NoError(t, err)
		assert.Equal(t, models.PurposeLogin, purpose)

		_, err = svc.Verify(ctx, "n.rahimi@example.org", code)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
	})

	t.Run("wrong code does not consume the token", func(t *testing.T) {
		mailer := &capturingMailer{}
		svc := newService(mailer)
		require.NoError(t, svc.Issue(ctx, "n.rahimi@example.org", models.PurposeLogin))
		code := mailer.code(t)

		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		_, err := svc.Verify(ctx, "n.rahimi@example.org", wrong)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))

		purpose, err := svc.Verify(ctx, "n.rahimi@example.org", code)
		require.NoError(t, err)
		assert.Equal(t, models.PurposeLogin, purpose)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		mailer := &capturingMailer{}
		svc := newService(mailer)
		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, svc.Issue(requestcontext.WithTime(ctx, issuedAt), "n.rahimi@example.org", models.PurposeLogin))
		code := mailer.code(t)

		later := requestcontext.WithTime(ctx, issuedAt.Add(11*time.Minute))
		_, err := svc.Verify(later, "n.rahimi@example.org", code)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
	})

	t.Run("reissue replaces the previous token", func(t *testing.T) {
		mailer := &capturingMailer{}
		svc := newService(mailer)
		require.NoError(t, svc.Issue(ctx, "n.rahimi@example.org", models.PurposeLogin))
		first := mailer.code(t)

		require.NoError(t, svc.Issue(ctx, "n.rahimi@example.org", models.PurposeEmailBinding))
		second := mailer.code(t)

		if first != second {
			_, err := svc.Verify(ctx, "n.rahimi@example.org", first)
			require.Error(t, err)
		}
		purpose, err := svc.Verify(ctx, "n.rahimi@example.org", second)
		require.NoError(t, err)
		assert.Equal(t, models.PurposeEmailBinding, purpose)
	})
}
