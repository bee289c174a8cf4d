// Package memory provides an in-process cache driver. It backs the
// short-circuit read tier and stands in for the persistent tier when no
// relational store is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, cache.ErrNotFound
	}
	if !e.expiresAt.After(time.Now()) {
		// Lazy eviction
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, cache.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired: drop any previous value instead of storing.
		return s.Delete(context.Background(), key)
	}

	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.entries[key] = entry{value: v, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
	return nil
}
