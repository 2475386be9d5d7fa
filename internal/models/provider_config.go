package models

import (
	"errors"
	"strings"
	"time"
)

// Known provider names
const (
	ProviderGemini    = "gemini"
	ProviderGrok      = "grok"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	// ProviderNone is reported when no provider served the request
	ProviderNone = "none"
)

// ProviderConfig holds configuration for one AI vendor
type ProviderConfig struct {
	Name         string            `yaml:"-" json:"name"`
	Type         string            `yaml:"type,omitempty" json:"type,omitzero"` // SDK family; defaults to Name
	APIKey       string            `yaml:"api_key" json:"-"`
	Model        string            `yaml:"model" json:"model"`
	MaxTokens    int               `yaml:"max_tokens,omitempty" json:"max_tokens,omitzero"`
	Temperature  float64           `yaml:"temperature,omitempty" json:"temperature,omitzero"`
	TimeoutMs    int               `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitzero"`
	RetryCount   int               `yaml:"retry_count,omitempty" json:"retry_count"`
	BaseURL      string            `yaml:"base_url,omitempty" json:"base_url,omitzero"`
	RateLimitRpm *int              `yaml:"rate_limit_rpm,omitempty" json:"rate_limit_rpm,omitzero"` // Outbound requests per minute
	Headers      map[string]string `yaml:"headers,omitempty" json:"-"`
}

var (
	errMissingAPIKey = errors.New("api key is empty")
	errMissingModel  = errors.New("model is empty")
)

// Validate reports why the provider cannot be used, or nil when it is usable.
// Both provider resolution and the pre-call guard rely on this single rule.
func (p ProviderConfig) Validate() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return errMissingAPIKey
	}
	if strings.TrimSpace(p.Model) == "" {
		return errMissingModel
	}
	return nil
}

// Usable is a shorthand for Validate() == nil
func (p ProviderConfig) Usable() bool {
	return p.Validate() == nil
}

// Kind returns the SDK family used to talk to this provider
func (p ProviderConfig) Kind() string {
	if p.Type != "" {
		return strings.ToLower(p.Type)
	}
	return strings.ToLower(p.Name)
}

// Timeout returns the per-attempt budget
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// ResolutionStatus tags the outcome of resolving one provider name
type ResolutionStatus string

const (
	ResolutionResolved ResolutionStatus = "resolved"
	ResolutionUnknown  ResolutionStatus = "unknown"
	ResolutionDisabled ResolutionStatus = "disabled"
)

// ResolutionRole is why a provider was considered
type ResolutionRole string

const (
	RolePreferred ResolutionRole = "preferred"
	RoleDefault   ResolutionRole = "default"
	RoleFallback  ResolutionRole = "fallback"
)

// Resolution records how one candidate provider was resolved
type Resolution struct {
	Provider string           `json:"provider"`
	Role     ResolutionRole   `json:"role"`
	Status   ResolutionStatus `json:"status"`
	Reason   string           `json:"reason,omitzero"`
}
