package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

// providerEnv names the environment variables of each built-in provider
var providerEnv = []struct {
	name  string
	key   string
	model string
	rpm   string
}{
	{models.ProviderGemini, "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_RATE_LIMIT_RPM"},
	{models.ProviderGrok, "GROK_API_KEY", "GROK_MODEL", "GROK_RATE_LIMIT_RPM"},
	{models.ProviderOpenAI, "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_RATE_LIMIT_RPM"},
	{models.ProviderAnthropic, "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_RATE_LIMIT_RPM"},
}

// FromEnv builds the configuration from environment variables alone
func FromEnv() *Config {
	c := &Config{
		Server: models.ServerConfig{
			Port:           getenv("PORT", "8080"),
			AllowedOrigins: getenv("ALLOWED_ORIGINS", "*"),
			Environment:    getenv("APP_ENV", "development"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			MetricsPath:    os.Getenv("METRICS_PATH"),
		},
		AI: models.AIConfig{
			DefaultProvider:  getenv("AI_DEFAULT_PROVIDER", models.ProviderGemini),
			FallbackProvider: getenv("AI_FALLBACK_PROVIDER", models.ProviderGrok),
			Providers:        make(map[string]models.ProviderConfig),
		},
		RateLimit: models.RateLimitConfig{
			Enabled: getenv("RATE_LIMIT_ENABLED", "true") != "false",
		},
	}

	for _, p := range providerEnv {
		key := os.Getenv(p.key)
		if key == "" {
			continue
		}
		pc := models.ProviderConfig{
			Name:       p.name,
			APIKey:     key,
			Model:      getenv(p.model, models.DefaultModels[p.name]),
			RetryCount: models.DefaultRetryCount,
		}
		if rpm, err := strconv.Atoi(os.Getenv(p.rpm)); err == nil && rpm > 0 {
			pc.RateLimitRpm = &rpm
		}
		c.AI.Providers[p.name] = pc
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.RateLimit.Store = models.RateLimitStoreRedis
		c.RateLimit.RedisURL = redisURL
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database = databaseFromURL(dsn)
		c.Audit.Enabled = c.Database != nil
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth = models.AuthConfig{
			Enabled:  true,
			Secret:   secret,
			Issuer:   os.Getenv("JWT_ISSUER"),
			Required: os.Getenv("AUTH_REQUIRED") == "true",
		}
	}

	if cacheKey := os.Getenv("CACHE_OPENAI_API_KEY"); cacheKey != "" {
		c.Cache = models.CacheConfig{
			Enabled:      true,
			Backend:      models.CacheBackendMemory,
			OpenAIAPIKey: cacheKey,
		}
		if c.RateLimit.RedisURL != "" {
			c.Cache.Backend = models.CacheBackendRedis
			c.Cache.RedisURL = c.RateLimit.RedisURL
		}
	}

	c.normalize()
	return c
}

// databaseFromURL picks the driver from the DSN scheme
func databaseFromURL(dsn string) *models.DatabaseConfig {
	scheme, rest, _ := strings.Cut(dsn, "://")
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return &models.DatabaseConfig{Type: models.PostgreSQL, DSN: dsn}
	case "mysql":
		// The MySQL driver takes a DSN without scheme
		return &models.DatabaseConfig{Type: models.MySQL, DSN: rest}
	case "clickhouse":
		return &models.DatabaseConfig{Type: models.ClickHouse, DSN: dsn}
	case "sqlite", "file":
		return &models.DatabaseConfig{Type: models.SQLite, FilePath: rest}
	}
	if path, ok := strings.CutPrefix(dsn, "file:"); ok {
		return &models.DatabaseConfig{Type: models.SQLite, FilePath: path}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
