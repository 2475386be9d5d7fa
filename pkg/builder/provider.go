package builder

import (
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

type ProviderBuilder struct {
	cfg models.ProviderConfig
}

func NewProviderBuilder(apiKey, model string) *ProviderBuilder {
	return &ProviderBuilder{cfg: models.ProviderConfig{
		APIKey:     apiKey,
		Model:      model,
		RetryCount: models.DefaultRetryCount,
		Headers:    make(map[string]string),
	}}
}

// WithType sets the SDK family when the provider name is not one
func (pb *ProviderBuilder) WithType(kind string) *ProviderBuilder {
	pb.cfg.Type = kind
	return pb
}

func (pb *ProviderBuilder) WithBaseURL(url string) *ProviderBuilder {
	pb.cfg.BaseURL = url
	return pb
}

func (pb *ProviderBuilder) WithMaxTokens(n int) *ProviderBuilder {
	pb.cfg.MaxTokens = n
	return pb
}

func (pb *ProviderBuilder) WithTemperature(t float64) *ProviderBuilder {
	pb.cfg.Temperature = t
	return pb
}

func (pb *ProviderBuilder) WithTimeout(ms int) *ProviderBuilder {
	pb.cfg.TimeoutMs = ms
	return pb
}

func (pb *ProviderBuilder) WithRetries(n int) *ProviderBuilder {
	pb.cfg.RetryCount = n
	return pb
}

func (pb *ProviderBuilder) WithRateLimit(rpm int) *ProviderBuilder {
	pb.cfg.RateLimitRpm = &rpm
	return pb
}

func (pb *ProviderBuilder) WithHeader(key, value string) *ProviderBuilder {
	pb.cfg.Headers[key] = value
	return pb
}

func (pb *ProviderBuilder) Build() models.ProviderConfig {
	return pb.cfg
}

func (b *Builder) AddProvider(name string, cfg models.ProviderConfig) *Builder {
	name = strings.ToLower(strings.TrimSpace(name))
	cfg.Name = name
	b.cfg.AI.Providers[name] = cfg
	return b
}

func (b *Builder) DefaultProvider(name string) *Builder {
	b.cfg.AI.DefaultProvider = strings.ToLower(name)
	return b
}

func (b *Builder) FallbackProvider(name string) *Builder {
	b.cfg.AI.FallbackProvider = strings.ToLower(name)
	return b
}

// WithRetryBackoff sets the backoff shared by all providers
func (b *Builder) WithRetryBackoff(cfg models.RetryConfig) *Builder {
	b.cfg.AI.Retry = cfg
	return b
}
