package store

import (
	"context"
	"sync"
	"time"

	"civreg/internal/otp/models"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps tokens behind a single mutex. Replace and ConsumeIfMatch
// hold the lock for their whole check-and-set, which is the whole atomicity
// story for development deployments without Redis.
type InMemory struct {
	mu     sync.Mutex
	tokens map[string]*models.Token
}

func NewInMemory() *InMemory {
	return &InMemory{tokens: make(map[string]*models.Token)}
}

func (s *InMemory) Replace(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.Email] = &cp
	return nil
}

func (s *InMemory) ConsumeIfMatch(_ context.Context, email, code string, now time.Time) (models.Purpose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[email]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if !t.Matches(code) {
		return "", ErrMismatch
	}
	if t.IsExpired(now) {
		return "", sentinel.ErrExpired
	}
	delete(s.tokens, email)
	return t.Purpose, nil
}
