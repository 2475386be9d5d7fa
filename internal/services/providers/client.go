package providers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Client generates one completion on a provider
type Client interface {
	Generate(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error)
}

// ClientFunc adapts a function to Client
type ClientFunc func(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error)

// Generate implements Client
func (f ClientFunc) Generate(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error) {
	return f(ctx, cfg, req)
}

// Set maps SDK families to clients and applies outbound throttling
type Set struct {
	mu       sync.RWMutex
	clients  map[string]Client
	throttle *Throttle
}

// NewSet creates a set with the built-in vendor clients registered
func NewSet() *Set {
	s := NewEmptySet()

	openaiClient := NewOpenAIClient()
	s.Register(models.ProviderGemini, NewGeminiClient())
	s.Register(models.ProviderOpenAI, openaiClient)
	s.Register(models.ProviderGrok, openaiClient) // xAI speaks the OpenAI protocol
	s.Register(models.ProviderAnthropic, NewAnthropicClient())

	return s
}

// NewEmptySet creates a set with no clients registered
func NewEmptySet() *Set {
	return &Set{
		clients:  make(map[string]Client),
		throttle: NewThrottle(),
	}
}

// Register binds a client to an SDK family
func (s *Set) Register(kind string, c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[kind] = c
}

// ClientFor returns the client serving cfg, throttled by cfg.RateLimitRpm
func (s *Set) ClientFor(cfg models.ProviderConfig) (Client, error) {
	s.mu.RLock()
	c, ok := s.clients[cfg.Kind()]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewConfigurationError(fmt.Sprintf("no client for provider type %q", cfg.Kind()), nil)
	}

	if cfg.RateLimitRpm == nil || *cfg.RateLimitRpm <= 0 {
		return c, nil
	}
	return ClientFunc(func(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error) {
		if err := s.throttle.Wait(ctx, cfg); err != nil {
			return models.Completion{}, err
		}
		return c.Generate(ctx, cfg, req)
	}), nil
}

// configKey hashes the connection settings of cfg for client caching
func configKey(cfg models.ProviderConfig) string {
	type configForHash struct {
		Kind       string
		BaseURL    string
		Headers    map[string]string
		APIKeyHash string
	}

	apiKeyHash := sha256.Sum256([]byte(cfg.APIKey))
	data, err := json.Marshal(configForHash{
		Kind:       cfg.Kind(),
		BaseURL:    cfg.BaseURL,
		Headers:    cfg.Headers,
		APIKeyHash: fmt.Sprintf("%x", apiKeyHash[:8]),
	})
	if err != nil {
		fiberlog.Warnf("Failed to hash config for %s: %v", cfg.Name, err)
		return cfg.Name
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", cfg.Name, hash[:16])
}

// vendorError wraps a vendor failure. Client-side rejections (bad request,
// auth, unknown model) are not retryable.
func vendorError(provider string, status int, err error) error {
	appErr := models.NewVendorError(provider, "request failed", err)
	if status > 0 {
		appErr.Message = fmt.Sprintf("provider %s error: status %d", provider, status)
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		appErr.Retryable = false
	}
	return appErr
}

func emptyContentError(provider string) error {
	return models.NewVendorError(provider, "empty response content", nil)
}
