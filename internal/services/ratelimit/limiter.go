package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Limiter enforces fixed-window quotas on keys
type Limiter struct {
	store Store
	clock Clock
	rules map[string]models.RateLimitRule
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithRules sets the per-operation quotas used by CheckOperation
func WithRules(rules map[string]models.RateLimitRule) Option {
	return func(l *Limiter) {
		l.rules = make(map[string]models.RateLimitRule, len(rules))
		for op, rule := range rules {
			l.rules[strings.ToLower(op)] = rule
		}
	}
}

// New creates a limiter over store
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		clock: SystemClock,
		rules: map[string]models.RateLimitRule{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request for key against limit per window. A limit below 1
// disables limiting. Store failures are logged and the request is allowed.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) models.RateLimitResult {
	if limit < 1 || window <= 0 {
		return models.RateLimitResult{Allowed: true}
	}

	now := l.clock.Now()
	state, allowed, err := l.store.Hit(ctx, key, limit, window, now)
	if err != nil {
		fiberlog.Warnf("Rate limit store error for %s, allowing request: %v", key, err)
		return models.RateLimitResult{
			Allowed:   true,
			Remaining: limit - 1,
			ResetTime: now.Add(window),
		}
	}

	remaining := 0
	if allowed {
		remaining = max(limit-state.Count, 0)
	}

	return models.RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetTime: state.WindowResetAt,
		Count:     state.Count,
	}
}

// Rule returns the quota configured for operation
func (l *Limiter) Rule(operation string) (models.RateLimitRule, bool) {
	rule, ok := l.rules[strings.ToLower(operation)]
	return rule, ok
}

// CheckOperation applies the operation's rule to clientKey. The second
// result is false when the operation has no rule.
func (l *Limiter) CheckOperation(ctx context.Context, operation, clientKey string) (models.RateLimitResult, bool) {
	rule, ok := l.Rule(operation)
	if !ok {
		return models.RateLimitResult{Allowed: true}, false
	}
	return l.Check(ctx, Key(operation, clientKey), rule.Limit, rule.Window()), true
}

// Reset forgets the counter of clientKey for operation
func (l *Limiter) Reset(ctx context.Context, operation, clientKey string) error {
	return l.store.Reset(ctx, Key(operation, clientKey))
}

// Close releases the underlying store
func (l *Limiter) Close() error {
	return l.store.Close()
}

// Key scopes a client key to an operation
func Key(operation, clientKey string) string {
	if clientKey == "" {
		clientKey = "anonymous"
	}
	return strings.ToLower(operation) + ":" + clientKey
}
