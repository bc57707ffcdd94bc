// Package memory provides a process-local session store. Values live until
// the process exits or their TTL passes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

type item struct {
	value   string
	expires time.Time
}

// Store is a ports.SessionStore held in memory.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

// New creates a store. A zero ttl keeps values for the life of the process.
func New(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]item),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || s.expired(it) {
		return "", domain.NewNotFoundError("key", key)
	}

	return it.value, nil
}

// Set stores value under key and restarts its TTL.
func (s *Store) Set(_ context.Context, key, value string) error {
	it := item{value: value}
	if s.ttl > 0 {
		it.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()

	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// Check implements ports.HealthChecker. The store is always usable.
func (s *Store) Check(context.Context) error {
	return nil
}

func (s *Store) expired(it item) bool {
	return !it.expires.IsZero() && !s.now().Before(it.expires)
}
