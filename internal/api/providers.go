package api

import (
	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"
	"github.com/doctor-direct/ai-orchestrator/internal/services/response"

	"github.com/gofiber/fiber/v2"
)

// ProvidersView lists configured providers without credentials
type ProvidersView struct {
	DefaultProvider  string                    `json:"default_provider"`
	FallbackProvider string                    `json:"fallback_provider"`
	Providers        []registry.ProviderStatus `json:"providers"`
}

// ProvidersHandler reports the provider registry
type ProvidersHandler struct {
	registry *registry.Registry
	respSvc  *response.BaseService
}

// NewProvidersHandler creates a providers handler
func NewProvidersHandler(reg *registry.Registry, respSvc *response.BaseService) *ProvidersHandler {
	return &ProvidersHandler{registry: reg, respSvc: respSvc}
}

// List handles GET /api/ai/providers
func (h *ProvidersHandler) List(c *fiber.Ctx) error {
	return h.respSvc.Success(c, ProvidersView{
		DefaultProvider:  h.registry.DefaultName(),
		FallbackProvider: h.registry.FallbackName(),
		Providers:        h.registry.Statuses(),
	})
}
