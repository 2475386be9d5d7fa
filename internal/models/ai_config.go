package models

// AIConfig holds the provider registry and the call policy shared by all providers
type AIConfig struct {
	DefaultProvider  string                    `yaml:"default_provider" json:"default_provider"`
	FallbackProvider string                    `yaml:"fallback_provider" json:"fallback_provider"`
	Providers        map[string]ProviderConfig `yaml:"providers" json:"providers"`
	Retry            RetryConfig               `yaml:"retry" json:"retry"`
}

// RetryConfig holds backoff settings. The attempt count comes from each
// provider's RetryCount.
type RetryConfig struct {
	InitialDelayMs int     `yaml:"initial_delay_ms,omitempty" json:"initial_delay_ms,omitzero"`
	Multiplier     float64 `yaml:"multiplier,omitempty" json:"multiplier,omitzero"`
	MaxDelayMs     int     `yaml:"max_delay_ms,omitempty" json:"max_delay_ms,omitzero"` // 0 leaves delays uncapped
	Jitter         float64 `yaml:"jitter,omitempty" json:"jitter,omitzero"`             // 0 keeps delays deterministic
}

// Provider defaults applied when a field is left empty
const (
	DefaultMaxTokens      = 1024
	DefaultTemperature    = 0.7
	DefaultTimeoutMs      = 30000
	DefaultRetryCount     = 2
	DefaultInitialDelayMs = 1000
	DefaultMultiplier     = 2.0
)

// DefaultModels maps known providers to the model used when none is configured
var DefaultModels = map[string]string{
	ProviderGemini:    "gemini-2.5-flash",
	ProviderGrok:      "grok-2-latest",
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
}

// DefaultBaseURLs holds base URLs for providers that speak another vendor's protocol
var DefaultBaseURLs = map[string]string{
	ProviderGrok: "https://api.x.ai/v1",
}

// WithDefaults fills empty numeric fields of a provider config
func (p ProviderConfig) WithDefaults() ProviderConfig {
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = DefaultTimeoutMs
	}
	if p.RetryCount < 0 {
		p.RetryCount = 0
	}
	if p.BaseURL == "" {
		p.BaseURL = DefaultBaseURLs[p.Kind()]
	}
	return p
}

// WithDefaults fills empty retry settings. A multiplier below 1 is kept, so
// delays shrink between attempts.
func (r RetryConfig) WithDefaults() RetryConfig {
	if r.InitialDelayMs <= 0 {
		r.InitialDelayMs = DefaultInitialDelayMs
	}
	if r.Multiplier <= 0 {
		r.Multiplier = DefaultMultiplier
	}
	if r.MaxDelayMs < 0 {
		r.MaxDelayMs = 0
	}
	if r.Jitter < 0 || r.Jitter >= 1 {
		r.Jitter = 0
	}
	return r
}
