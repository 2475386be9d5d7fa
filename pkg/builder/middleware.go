package builder

import (
	"time"

	pkgmodels "github.com/doctor-direct/ai-orchestrator/pkg/models"
	"github.com/gofiber/fiber/v2"
)

func (b *Builder) WithGlobalRateLimit(max int, expiration time.Duration, keyFunc ...func(*fiber.Ctx) string) *Builder {
	cfg := &pkgmodels.GlobalRateLimit{
		Max:        max,
		Expiration: expiration,
	}
	if len(keyFunc) > 0 {
		cfg.KeyFunc = keyFunc[0]
	}
	b.globalRateLimit = cfg
	return b
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeoutConfig = &pkgmodels.TimeoutConfig{
		Timeout: timeout,
	}
	b.cfg.Server.RequestTimeoutMs = int(timeout.Milliseconds())
	return b
}

func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}
