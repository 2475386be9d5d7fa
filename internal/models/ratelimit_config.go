package models

import "time"

// RateLimitStoreType selects where fixed-window counters live
type RateLimitStoreType string

const (
	RateLimitStoreMemory RateLimitStoreType = "memory"
	RateLimitStoreRedis  RateLimitStoreType = "redis"
)

// Operations with a default rate limit rule
const (
	OperationChat     = "chat"
	OperationSymptoms = "symptoms"
	OperationCompare  = "compare"
)

// RateLimitRule is the per-operation quota
type RateLimitRule struct {
	Limit    int `yaml:"limit" json:"limit"`
	WindowMs int `yaml:"window_ms" json:"window_ms"`
}

// Window returns the rule's window as a duration
func (r RateLimitRule) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// RateLimitConfig holds caller-side rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool                     `yaml:"enabled" json:"enabled"`
	Store             RateLimitStoreType       `yaml:"store,omitempty" json:"store,omitzero"`
	RedisURL          string                   `yaml:"redis_url,omitempty" json:"-"`
	CleanupIntervalMs int                      `yaml:"cleanup_interval_ms,omitempty" json:"cleanup_interval_ms,omitzero"`
	Rules             map[string]RateLimitRule `yaml:"rules,omitempty" json:"rules,omitzero"`
}

// DefaultRateLimitRules returns the quotas applied when none are configured
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		OperationChat:     {Limit: 20, WindowMs: 60000},
		OperationSymptoms: {Limit: 10, WindowMs: 60000},
		OperationCompare:  {Limit: 5, WindowMs: 60000},
	}
}

// RateLimitResult is the outcome of one limiter check
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Count     int       `json:"count"`
}

// RateLimitState is the stored counter for one key
type RateLimitState struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}
