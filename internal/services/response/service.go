package response

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/gofiber/fiber/v2"
)

// BaseService writes the JSON envelope shared by every endpoint
type BaseService struct {
	now func() time.Time
}

// NewBaseService creates a new base response service
func NewBaseService() *BaseService {
	return &BaseService{now: time.Now}
}

// Success sends a 200 envelope carrying data
func (s *BaseService) Success(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(models.Envelope{
		Success:   true,
		Data:      data,
		Timestamp: s.now().UTC(),
	})
}

// Error sends an error envelope for err. Only validation messages reach the
// client verbatim; every other kind is replaced by its user message.
func (s *BaseService) Error(c *fiber.Ctx, err error, requestID string) error {
	safe := models.SanitizeError(err)
	return s.send(c, safe.Kind, safe.Message, safe.Code, safe.Retryable, requestID, time.Time{})
}

// AIError sends the error envelope for a failed orchestrated call
func (s *BaseService) AIError(c *fiber.Ctx, kind models.ErrorKind, resetAt time.Time, requestID string) error {
	retryable := kind != models.ErrorKindValidation && kind != models.ErrorKindConfiguration
	return s.send(c, kind, models.UserMessage(kind), "", retryable, requestID, resetAt)
}

func (s *BaseService) send(c *fiber.Ctx, kind models.ErrorKind, message, code string, retryable bool, requestID string, resetAt time.Time) error {
	status := StatusFor(kind)
	if status == http.StatusTooManyRequests && !resetAt.IsZero() {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(resetAt, s.now())))
	}

	return c.Status(status).JSON(models.Envelope{
		Success: false,
		Error: &models.ErrorBody{
			Kind:      kind,
			Message:   message,
			Code:      code,
			Retryable: retryable,
			RequestID: requestID,
		},
		Timestamp: s.now().UTC(),
	})
}

// StatusFor maps an error kind to its HTTP status. Failures of the AI
// chain all surface as 500.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(secs, 1)
}
