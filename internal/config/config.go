package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig    `yaml:"server"`
	AI        models.AIConfig        `yaml:"ai"`
	RateLimit models.RateLimitConfig `yaml:"rate_limit"`
	Cache     models.CacheConfig     `yaml:"cache"`
	Auth      models.AuthConfig      `yaml:"auth"`
	Audit     models.AuditConfig     `yaml:"audit"`
	Database  *models.DatabaseConfig `yaml:"database,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.normalize()
	return &config, nil
}

// Load reads configPath when it exists and falls back to the environment otherwise
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			fiberlog.Infof("Loading configuration from %s", configPath)
			return LoadFromFile(configPath)
		}
		fiberlog.Infof("Config file %s not found, reading configuration from the environment", configPath)
	}
	return FromEnv(), nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// normalize lowercases provider keys and fills defaults left empty by the file
func (c *Config) normalize() {
	if c.AI.Providers != nil {
		normalized := make(map[string]models.ProviderConfig, len(c.AI.Providers))
		for key, value := range c.AI.Providers {
			name := strings.ToLower(strings.TrimSpace(key))
			value.Name = name
			normalized[name] = value
		}
		c.AI.Providers = normalized
	}
	c.AI.DefaultProvider = strings.ToLower(strings.TrimSpace(c.AI.DefaultProvider))
	c.AI.FallbackProvider = strings.ToLower(strings.TrimSpace(c.AI.FallbackProvider))
	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = models.ProviderGemini
	}
	if c.AI.FallbackProvider == "" {
		c.AI.FallbackProvider = models.ProviderGrok
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.RateLimit.Store == "" {
		c.RateLimit.Store = models.RateLimitStoreMemory
	}
	if len(c.RateLimit.Rules) == 0 {
		c.RateLimit.Rules = models.DefaultRateLimitRules()
	}
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks that the configuration can start a server. Providers
// without credentials are not an error; the registry reports them.
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.RateLimit.Enabled && c.RateLimit.Store == models.RateLimitStoreRedis && c.RateLimit.RedisURL == "" {
		missing = append(missing, "rate_limit.redis_url")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		missing = append(missing, "auth.secret")
	}
	if c.Audit.Enabled && c.Database == nil {
		missing = append(missing, "database")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	for op, rule := range c.RateLimit.Rules {
		if rule.Limit > 0 && rule.WindowMs <= 0 {
			return models.NewValidationError(fmt.Sprintf("rate_limit.rules.%s.window_ms must be positive", op), nil)
		}
	}
	if c.AI.Retry.Multiplier < 0 {
		return models.NewValidationError("ai.retry.multiplier must not be negative", nil)
	}
	if c.AI.Retry.MaxDelayMs < 0 {
		return models.NewValidationError("ai.retry.max_delay_ms must not be negative", nil)
	}
	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
