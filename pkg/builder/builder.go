package builder

import (
	"github.com/doctor-direct/ai-orchestrator/internal/config"
	"github.com/doctor-direct/ai-orchestrator/internal/models"
	pkgmodels "github.com/doctor-direct/ai-orchestrator/pkg/models"
	"github.com/gofiber/fiber/v2"
)

type Builder struct {
	cfg             *config.Config
	middlewares     []fiber.Handler
	globalRateLimit *pkgmodels.GlobalRateLimit
	timeoutConfig   *pkgmodels.TimeoutConfig
}

func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			AI: models.AIConfig{
				DefaultProvider:  models.ProviderGemini,
				FallbackProvider: models.ProviderGrok,
				Providers:        make(map[string]models.ProviderConfig),
			},
			RateLimit: models.RateLimitConfig{
				Enabled: true,
				Store:   models.RateLimitStoreMemory,
				Rules:   models.DefaultRateLimitRules(),
			},
		},
		middlewares: []fiber.Handler{},
	}
}

func (b *Builder) Build() *config.Config {
	return b.cfg
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

func (b *Builder) GetGlobalRateLimit() *pkgmodels.GlobalRateLimit {
	return b.globalRateLimit
}

func (b *Builder) GetTimeoutConfig() *pkgmodels.TimeoutConfig {
	return b.timeoutConfig
}
