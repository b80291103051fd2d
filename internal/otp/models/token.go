package models

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	dErrors "civreg/pkg/domain-errors"
)

// Purpose names the flow a token authorizes. Verification returns it so the
// caller can reject a token minted for a different flow.
type Purpose string

const (
	PurposeLogin        Purpose = "login"
	PurposeEmailBinding Purpose = "email_binding"
)

var validPurposes = map[Purpose]bool{
	PurposeLogin:        true,
	PurposeEmailBinding: true,
}

// ParsePurpose constructs a Purpose from external input.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !validPurposes[p] {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported token purpose")
	}
	return p, nil
}

// Token is a one-time passcode bound to an email address. At most one live
// token exists per address; issuing a new one replaces the old atomically.
type Token struct {
	Email     string
	Code      string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewToken generates a uniform six-digit code and wraps it with its expiry.
func NewToken(email string, purpose Purpose, now time.Time, ttl time.Duration) (*Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email address is required")
	}
	if !validPurposes[purpose] {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported token purpose")
	}
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	return &Token{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsExpired checks the absolute expiry. Expiry is evaluated lazily at
// verification time; nothing sweeps tokens eagerly.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Matches compares codes in constant time.
func (t *Token) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(t.Code), []byte(code)) == 1
}

var million = big.NewInt(1000000)

// generateCode draws a uniform six-digit code, leading zeros included.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, million)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
