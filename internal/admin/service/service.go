package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	adminmetrics "civreg/internal/admin/metrics"
	"civreg/internal/admin/models"
	"civreg/internal/admin/store"
	otpmodels "civreg/internal/otp/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

const tokenIssuer = "civreg"

// OTPCoordinator is the second-factor surface the admin module depends on.
type OTPCoordinator interface {
	Issue(ctx context.Context, email string, purpose otpmodels.Purpose) error
	Verify(ctx context.Context, email, code string) (otpmodels.Purpose, error)
}

// LoginState tells the client what the login attempt produced.
type LoginState string

const (
	// StateAuthenticated carries a session token.
	StateAuthenticated LoginState = "authenticated"
	// StateOTPPending means a passcode was mailed; complete the login with it.
	StateOTPPending LoginState = "otp_pending"
)

// LoginResult is the outcome of Login or CompleteLogin.
type LoginResult struct {
	State LoginState
	Token string
	// Email is a masked hint of where the passcode went.
	Email string
}

// Service runs the administrator login state machine and the second-factor
// email binding flows, and mints the JWT sessions the back-office routes
// require.
type Service struct {
	admins     store.Store
	otp        OTPCoordinator
	signingKey []byte
	sessionTTL time.Duration
	logger     *slog.Logger
	metrics    *adminmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *adminmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(admins store.Store, otp OTPCoordinator, signingKey []byte, sessionTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		admins:     admins,
		otp:        otp,
		signingKey: signingKey,
		sessionTTL: sessionTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAdmin registers a new operator account.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*models.Administrator, error) {
	admin, err := models.NewAdministrator(username, password, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.admins.CreateIfUsernameAvailable(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
		}
		return nil, wrapStoreErr(err, "failed to create administrator")
	}
	s.logAudit(ctx, "admin_created", "username", admin.Username, "created_by", requestcontext.AdminID(ctx).String())
	return admin, nil
}

// Login checks the credentials. Accounts without a bound email get a session
// immediately; accounts with one get a mailed passcode and an otp_pending
// result, to be finished with CompleteLogin. Bad username and bad password
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementLogins("failure")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, wrapStoreErr(err, "failed to load administrator")
	}
	if !admin.CheckPassword(password) {
		s.metrics.IncrementLogins("failure")
		s.logAudit(ctx, "admin_login_failed", "username", username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	if !admin.HasSecondFactor() {
		token, err := s.issueSession(ctx, admin.ID)
		if err != nil {
			return nil, err
		}
		s.metrics.IncrementLogins("success")
		s.logAudit(ctx, "admin_login", "admin_id", admin.ID.String(), "second_factor", false)
		return &LoginResult{State: StateAuthenticated, Token: token}, nil
	}

	if err := s.otp.Issue(ctx, admin.Email, otpmodels.PurposeLogin); err != nil {
		return nil, err
	}
	s.metrics.IncrementLogins("otp_pending")
	s.logAudit(ctx, "admin_login_challenge", "admin_id", admin.ID.String())
	return &LoginResult{State: StateOTPPending, Email: maskEmail(admin.Email)}, nil
}

// CompleteLogin finishes an otp_pending login with the mailed code.
func (s *Service) CompleteLogin(ctx context.Context, email, code string) (*LoginResult, error) {
	purpose, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if purpose != otpmodels.PurposeLogin {
		return nil, dErrors.New(dErrors.CodeInvalidOrExpired, "code is invalid or expired")
	}

	admin, err := s.admins.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, wrapStoreErr(err, "failed to load administrator")
	}
	token, err := s.issueSession(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementLogins("success")
	s.logAudit(ctx, "admin_login", "admin_id", admin.ID.String(), "second_factor", true)
	return &LoginResult{State: StateAuthenticated, Token: token}, nil
}

// RequestEmailBinding mails a passcode to the address the administrator
// wants as their second factor.
func (s *Service) RequestEmailBinding(ctx context.Context, adminID id.AdminID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.admins.FindByID(ctx, adminID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "administrator not found")
		}
		return wrapStoreErr(err, "failed to load administrator")
	}
	// The address must not already authenticate someone else, or
	// CompleteLogin could resolve the wrong account.
	if other, err := s.admins.FindByEmail(ctx, email); err == nil && other.ID != adminID {
		return dErrors.New(dErrors.CodeConflict, "email is already bound to another administrator")
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return wrapStoreErr(err, "failed to check email binding")
	}

	return s.otp.Issue(ctx, email, otpmodels.PurposeEmailBinding)
}

// ConfirmEmailBinding verifies the mailed code and binds the address.
func (s *Service) ConfirmEmailBinding(ctx context.Context, adminID id.AdminID, email, code string) error {
	purpose, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return err
	}
	if purpose != otpmodels.PurposeEmailBinding {
		return dErrors.New(dErrors.CodeInvalidOrExpired, "code is invalid or expired")
	}

	now := requestcontext.Now(ctx)
	_, err = s.admins.Execute(ctx, adminID,
		func(*models.Administrator) error { return nil },
		func(a *models.Administrator) { a.BindEmail(email, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "administrator not found")
		}
		return wrapStoreErr(err, "failed to bind email")
	}

	s.metrics.IncrementEmailBindings()
	s.logAudit(ctx, "admin_email_bound", "admin_id", adminID.String())
	return nil
}

// ValidateSession checks a bearer token and returns the administrator it
// belongs to. The auth middleware calls this on every back-office request.
func (s *Service) ValidateSession(tokenString string) (id.AdminID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return id.AdminID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid session")
	}
	adminID, err := id.ParseAdminID(claims.Subject)
	if err != nil {
		return id.AdminID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	return adminID, nil
}

func (s *Service) issueSession(ctx context.Context, adminID id.AdminID) (string, error) {
	now := requestcontext.Now(ctx)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   adminID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return token, nil
}

// maskEmail hides the local part except its first character.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + "***@" + domain
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
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "registry store unavailable, retry later")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
