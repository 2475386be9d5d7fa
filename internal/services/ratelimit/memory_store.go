package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = time.Minute

// MemoryStore keeps counters in process memory. Each entry expires at its
// window reset, and a janitor removes expired entries every cleanup interval.
type MemoryStore struct {
	mu      sync.Mutex
	entries *cache.Cache
}

// NewMemoryStore creates a memory store sweeping expired keys every cleanupInterval
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	return &MemoryStore{
		entries: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// Hit implements Store
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (models.RateLimitState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.RateLimitState{Key: key}
	if v, ok := s.entries.Get(key); ok {
		state = v.(models.RateLimitState)
	}

	next, allowed := nextState(state, limit, window, now)
	if next != state {
		s.entries.Set(key, next, expiryFor(next, now))
	}
	return next, allowed, nil
}

// Reset implements Store
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(key)
	return nil
}

// Sweep removes expired entries immediately
func (s *MemoryStore) Sweep() {
	s.entries.DeleteExpired()
}

// Len returns the number of tracked keys, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	return s.entries.ItemCount()
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.entries.Flush()
	return nil
}

func expiryFor(state models.RateLimitState, now time.Time) time.Duration {
	d := state.WindowResetAt.Sub(now)
	if d <= 0 {
		// go-cache treats 0 as "default expiration"
		d = time.Millisecond
	}
	return d
}
