package builder

import (
	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

func (b *Builder) WithRateLimits(rules map[string]models.RateLimitRule) *Builder {
	b.cfg.RateLimit.Enabled = true
	b.cfg.RateLimit.Rules = rules
	return b
}

// WithRedisRateLimit keeps quota counters in Redis so replicas share them
func (b *Builder) WithRedisRateLimit(redisURL string) *Builder {
	b.cfg.RateLimit.Store = models.RateLimitStoreRedis
	b.cfg.RateLimit.RedisURL = redisURL
	return b
}

func (b *Builder) WithoutRateLimit() *Builder {
	b.cfg.RateLimit.Enabled = false
	return b
}

func (b *Builder) WithCache(cfg models.CacheConfig) *Builder {
	if cfg.Backend == "" {
		cfg.Backend = models.CacheBackendMemory
	}
	cfg.Enabled = true
	b.cfg.Cache = cfg
	return b
}

func (b *Builder) WithAuth(cfg models.AuthConfig) *Builder {
	cfg.Enabled = true
	b.cfg.Auth = cfg
	return b
}
