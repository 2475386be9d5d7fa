package pkg

import "github.com/doctor-direct/ai-orchestrator/internal/models"

type (
	ServerConfig    = models.ServerConfig
	AIConfig        = models.AIConfig
	ProviderConfig  = models.ProviderConfig
	RetryConfig     = models.RetryConfig
	RateLimitConfig = models.RateLimitConfig
	RateLimitRule   = models.RateLimitRule
	CacheConfig     = models.CacheConfig
	AuthConfig      = models.AuthConfig
	AuditConfig     = models.AuditConfig
	DatabaseConfig  = models.DatabaseConfig
	AIRequest       = models.AIRequest
	AIResponse      = models.AIResponse
	CompareResponse = models.CompareResponse
	ErrorKind       = models.ErrorKind
)
