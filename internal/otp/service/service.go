package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	otpmetrics "civreg/internal/otp/metrics"
	"civreg/internal/otp/models"
	"civreg/internal/otp/store"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/email"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// Service coordinates the one-time-passcode second factor: minting codes,
// mailing them and verifying them exactly once.
type Service struct {
	tokens  store.Store
	mailer  Mailer
	ttl     time.Duration
	logger  *slog.Logger
	metrics *otpmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *otpmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. ttl is the absolute token lifetime.
func New(tokens store.Store, mailer Mailer, ttl time.Duration, opts ...Option) *Service {
	s := &Service{tokens: tokens, mailer: mailer, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a fresh code for the address, replacing any live token, and
// mails it. A mail transport failure aborts the issuance with Unavailable;
// the already-rotated token stays stored but nobody ever learns its code,
// and the next Issue replaces it.
func (s *Service) Issue(ctx context.Context, emailAddr string, purpose models.Purpose) error {
	now := requestcontext.Now(ctx)
	token, err := models.NewToken(emailAddr, purpose, now, s.ttl)
	if err != nil {
		return err
	}

	if err := s.tokens.Replace(ctx, token); err != nil {
		return wrapStoreErr(err, "failed to store passcode")
	}

	subject, body := s.render(ctx, token)
	if err := s.mailer.Send(ctx, token.Email, subject, body); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to deliver passcode, retry later")
	}

	s.metrics.IncrementIssued()
	s.logAudit(ctx, "otp_issued", "email", token.Email, "purpose", string(purpose))
	return nil
}

// Verify checks the code against the live token for the address. A match
// that has not expired consumes the token and returns its purpose; every
// other outcome is reported uniformly as InvalidOrExpired so callers learn
// nothing about which check failed.
func (s *Service) Verify(ctx context.Context, emailAddr, code string) (models.Purpose, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	purpose, err := s.tokens.ConsumeIfMatch(ctx, emailAddr, code, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return "", wrapStoreErr(err, "failed to verify passcode")
		}
		s.metrics.IncrementVerifications("failure")
		s.logAudit(ctx, "otp_rejected", "email", emailAddr)
		return "", dErrors.New(dErrors.CodeInvalidOrExpired, "code is invalid or expired")
	}

	s.metrics.IncrementVerifications("success")
	s.logAudit(ctx, "otp_verified", "email", emailAddr, "purpose", string(purpose))
	return purpose, nil
}

func (s *Service) render(ctx context.Context, token *models.Token) (subject, body string) {
	greeting := email.DeriveGreeting(token.Email)
	device := describeDevice(requestcontext.UserAgent(ctx))
	minutes := int(s.ttl.Minutes())

	subject = "Your civil registry verification code"
	body = fmt.Sprintf(
		"Dear %s,\n\nYour verification code is %s. It expires in %d minutes.\n\n"+
			"The code was requested from %s. If this was not you, contact the registry office.",
		greeting, token.Code, minutes, device,
	)
	return subject, body
}

// describeDevice turns a raw User-Agent into the human line embedded in the
// mail, so recipients can spot a request they never made.
func describeDevice(rawUA string) string {
	if rawUA == "" {
		return "an unrecognized device"
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return fmt.Sprintf("%s on %s", browser, os)
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return "an unrecognized device"
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func wrapStoreErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "passcode store unavailable, retry later")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
