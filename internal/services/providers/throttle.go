package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"golang.org/x/time/rate"
)

// Throttle paces outbound requests per provider to its RateLimitRpm
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle creates an empty throttle
func NewThrottle() *Throttle {
	return &Throttle{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until cfg's provider may send another request
func (t *Throttle) Wait(ctx context.Context, cfg models.ProviderConfig) error {
	if cfg.RateLimitRpm == nil || *cfg.RateLimitRpm <= 0 {
		return nil
	}
	if err := t.limiter(cfg.Name, *cfg.RateLimitRpm).Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return models.NewTimeoutError(fmt.Sprintf("%s outbound rate limit wait exceeded deadline", cfg.Name), err)
	}
	return nil
}

func (t *Throttle) limiter(name string, rpm int) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[name]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(rpm)/60), 1)
	t.limiters[name] = l
	return l
}
