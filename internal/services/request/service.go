package request

import (
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// requestIDLocalKey is the fiber locals key holding the request ID
	requestIDLocalKey = "request_id"
	// PrincipalLocalKey is the fiber locals key holding the authenticated caller
	PrincipalLocalKey = "principal"
	// maxRequestIDLength caps client-supplied request IDs
	maxRequestIDLength = 128
)

// BaseService provides request identity helpers shared by handlers
type BaseService struct{}

// NewBaseService creates a new base request service
func NewBaseService() *BaseService {
	return &BaseService{}
}

// GetRequestID returns the request's ID: the cached value, the
// X-Request-ID header, or a fresh UUID
func (s *BaseService) GetRequestID(c *fiber.Ctx) string {
	if cached, ok := c.Locals(requestIDLocalKey).(string); ok && cached != "" {
		return cached
	}

	requestID := sanitizeRequestID(c.Get(fiber.HeaderXRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

// Principal returns the authenticated caller, if any
func (s *BaseService) Principal(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals(PrincipalLocalKey).(models.Principal)
	return p, ok && p.UserID != ""
}

// ClientKey identifies the caller for rate limiting: the user ID when
// authenticated, otherwise the client IP
func (s *BaseService) ClientKey(c *fiber.Ctx) string {
	if p, ok := s.Principal(c); ok {
		return "user:" + p.UserID
	}
	return "ip:" + c.IP()
}

// AIRequest stamps the caller's identity onto an AI request
func (s *BaseService) AIRequest(c *fiber.Ctx, operation string) models.AIRequest {
	return models.AIRequest{
		Operation: operation,
		ClientKey: s.ClientKey(c),
		RequestID: s.GetRequestID(c),
	}
}

func sanitizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	return id
}
