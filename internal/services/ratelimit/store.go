package ratelimit

import (
	"context"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

// Store holds fixed-window counters. Hit must apply the whole
// read-reset-increment step atomically for a key.
type Store interface {
	// Hit records one request for key at now and reports the resulting state
	// and whether the request fits within limit.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (models.RateLimitState, bool, error)
	// Reset forgets key
	Reset(ctx context.Context, key string) error
	Close() error
}

// nextState applies the fixed-window rule to a stored state. An expired or
// missing window restarts at count 1; a full window is left untouched.
func nextState(state models.RateLimitState, limit int, window time.Duration, now time.Time) (models.RateLimitState, bool) {
	if state.Count == 0 || !now.Before(state.WindowResetAt) {
		state.Count = 1
		state.WindowResetAt = now.Add(window)
		return state, true
	}
	if state.Count < limit {
		state.Count++
		return state, true
	}
	return state, false
}
