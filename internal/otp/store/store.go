package store

import (
	"context"
	"errors"
	"time"

	"civreg/internal/otp/models"
)

// ErrMismatch reports a code that does not match the live token.
var ErrMismatch = errors.New("code does not match")

// Store persists one-time passcodes, at most one live token per email.
type Store interface {
	// Replace installs the token, atomically discarding any previous token
	// for the same address. Two valid tokens never coexist for one email.
	Replace(ctx context.Context, token *models.Token) error

	// ConsumeIfMatch verifies the code against the live token for the
	// address and, on a match that has not expired, deletes the token and
	// returns its purpose. Mismatches return ErrMismatch, expired matches
	// sentinel.ErrExpired and missing tokens sentinel.ErrNotFound; none of
	// these consume the token.
	ConsumeIfMatch(ctx context.Context, email, code string, now time.Time) (models.Purpose, error)
}
