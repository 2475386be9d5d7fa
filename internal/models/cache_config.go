package models

import "time"

// CacheBackendType represents the type of cache backend to use
type CacheBackendType string

const (
	CacheBackendRedis  CacheBackendType = "redis"
	CacheBackendMemory CacheBackendType = "memory"
)

// CacheConfig holds configuration for the AI response cache (optional)
type CacheConfig struct {
	Backend  CacheBackendType `json:"backend,omitzero" yaml:"backend"`     // "redis" or "memory"
	RedisURL string           `json:"-" yaml:"redis_url"`                  // Required if backend is "redis"
	Capacity int              `json:"capacity,omitzero" yaml:"capacity"`   // LRU size for the memory backend

	Enabled           bool    `json:"enabled,omitzero" yaml:"enabled"`
	SemanticThreshold float64 `json:"semantic_threshold,omitzero" yaml:"semantic_threshold"` // 0 disables similarity lookups
	OpenAIAPIKey      string  `json:"-" yaml:"openai_api_key"`                               // Embeddings key
	EmbeddingModel    string  `json:"embedding_model,omitzero" yaml:"embedding_model"`
}

// CachedResponse is what the response cache stores per prompt
type CachedResponse struct {
	Content    string    `json:"content"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	TokensUsed int       `json:"tokens_used"`
	Operation  string    `json:"operation,omitzero"`
	CreatedAt  time.Time `json:"created_at"`
}
