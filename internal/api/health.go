package api

import (
	"context"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Ping() error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	registry    *registry.Registry
	redisClient redis.UniversalClient
	db          Pinger
	now         func() time.Time
}

// NewHealthHandler creates a new health check handler. redisClient and db
// may be nil when the deployment does not use them.
func NewHealthHandler(reg *registry.Registry, redisClient redis.UniversalClient, db Pinger) *HealthHandler {
	return &HealthHandler{
		registry:    reg,
		redisClient: redisClient,
		db:          db,
		now:         time.Now,
	}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	redisStatus := h.checkRedis(c.UserContext())
	dbStatus := h.checkDatabase()
	providerStatus := h.checkProviders()

	overallStatus := statusHealthy
	statusCode := fiber.StatusOK

	if redisStatus == statusUnhealthy || dbStatus == statusUnhealthy || providerStatus == statusUnhealthy {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	response := fiber.Map{
		"status":    overallStatus,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"redis":     redisStatus,
			"database":  dbStatus,
			"providers": providerStatus,
		},
	}

	return c.Status(statusCode).JSON(response)
}

// checkRedis verifies Redis connectivity
func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redisClient == nil {
		return statusDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return statusUnhealthy
	}

	return statusHealthy
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return statusDisabled
	}
	if err := h.db.Ping(); err != nil {
		return statusUnhealthy
	}
	return statusHealthy
}

// checkProviders reports unhealthy when no provider can serve a call
func (h *HealthHandler) checkProviders() string {
	if len(h.registry.Usable()) == 0 {
		return statusUnhealthy
	}
	return statusHealthy
}
