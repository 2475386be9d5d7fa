package middleware

import (
	"errors"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/request"
	"github.com/doctor-direct/ai-orchestrator/internal/services/response"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of a session token issued by the web app
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AuthMiddleware verifies HS256 session tokens and stores the caller as a
// models.Principal in fiber locals
type AuthMiddleware struct {
	config   models.AuthConfig
	parser   *jwt.Parser
	requests *request.BaseService
	response *response.BaseService
}

// NewAuthMiddleware creates the middleware
func NewAuthMiddleware(config models.AuthConfig) *AuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &AuthMiddleware{
		config:   config,
		parser:   jwt.NewParser(opts...),
		requests: request.NewBaseService(),
		response: response.NewBaseService(),
	}
}

// Handler authenticates the request. Without a token the request continues
// anonymously unless the configuration requires authentication.
func (m *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled {
			return c.Next()
		}

		token := extractToken(c)
		if token == "" {
			if m.config.Required {
				return m.reject(c, errors.New("authentication required"))
			}
			return c.Next()
		}

		principal, err := m.Verify(token)
		if err != nil {
			fiberlog.Debugf("[%s] Rejected session token: %v", m.requests.GetRequestID(c), err)
			return m.reject(c, err)
		}

		c.Locals(request.PrincipalLocalKey, principal)
		return c.Next()
	}
}

// Verify parses token and returns its principal
func (m *AuthMiddleware) Verify(token string) (models.Principal, error) {
	claims := &SessionClaims{}
	_, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(m.config.Secret), nil
	})
	if err != nil {
		return models.Principal{}, err
	}
	if claims.Subject == "" {
		return models.Principal{}, errors.New("token has no subject")
	}

	return models.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, cause error) error {
	err := models.NewUnauthorizedError("invalid or missing session token", cause)
	return m.response.Error(c, err, m.requests.GetRequestID(c))
}

func extractToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
