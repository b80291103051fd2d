package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Administrator is a back-office operator account. A bound email address
// switches login from single-factor to password-plus-passcode.
type Administrator struct {
	ID           id.AdminID
	Username     string
	PasswordHash []byte
	Email        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAdministrator validates credentials and hashes the password.
func NewAdministrator(username, password string, now time.Time) (*Administrator, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(password) < 8 {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return &Administrator{
		ID:           id.NewAdminID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword compares the candidate against the stored hash.
func (a *Administrator) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
}

// HasSecondFactor reports whether login requires the emailed passcode.
func (a *Administrator) HasSecondFactor() bool {
	return a.Email != ""
}

// BindEmail attaches the verified address that becomes the second factor.
func (a *Administrator) BindEmail(email string, now time.Time) {
	a.Email = strings.ToLower(strings.TrimSpace(email))
	a.UpdatedAt = now
}
