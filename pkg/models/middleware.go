package models

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// GlobalRateLimit is the coarse per-client request cap applied to every
// route, in front of the per-operation AI quotas
type GlobalRateLimit struct {
	Max        int
	Expiration time.Duration
	KeyFunc    func(*fiber.Ctx) string
}

// TimeoutConfig bounds the whole request
type TimeoutConfig struct {
	Timeout time.Duration
}
