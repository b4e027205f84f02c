package store

import (
	"context"
	"errors"
	"sync"
)

// DefaultKey is the single durable key holding the raw bearer token.
const DefaultKey = "price_analyzer_jwt"

// TokenStore abstracts durable storage of the session token.
// Absence of the key means the user is anonymous.
type TokenStore interface {
	Close() error

	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// MemoryStore keeps the token for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemory() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) LoadToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNotFound
	}
	return s.token, nil
}

func (s *MemoryStore) SaveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
