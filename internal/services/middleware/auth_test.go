package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/request"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "patient-7",
			Issuer:    "doctor-direct",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "p7@example.com",
		Role:  "patient",
	}
}

func newApp(cfg models.AuthConfig) *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg).Handler())
	reqs := request.NewBaseService()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(reqs.ClientKey(c))
	})
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := models.AuthConfig{Enabled: true, Secret: testSecret, Issuer: "doctor-direct"}
	app := newApp(cfg)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"valid token", signToken(t, testSecret, validClaims()), 200, "user:patient-7"},
		{"anonymous allowed", "", 200, ""},
		{"wrong secret", signToken(t, "other", validClaims()), 401, ""},
		{"expired", signToken(t, testSecret, expired), 401, ""},
		{"wrong issuer", signToken(t, testSecret, wrongIssuer), 401, ""},
		{"no subject", signToken(t, testSecret, noSubject), 401, ""},
		{"garbage", "not-a-jwt", 401, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.token)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
			if tt.wantBody != "" && body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestAuthMiddlewareRequired(t *testing.T) {
	app := newApp(models.AuthConfig{Enabled: true, Secret: testSecret, Required: true})
	if status, _ := call(t, app, ""); status != 401 {
		t.Fatalf("anonymous status = %d, want 401", status)
	}
	if status, _ := call(t, app, signToken(t, testSecret, validClaims())); status != 200 {
		t.Fatalf("authenticated status = %d, want 200", status)
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	app := newApp(models.AuthConfig{Enabled: false, Required: true})
	if status, _ := call(t, app, "garbage"); status != 200 {
		t.Fatalf("disabled middleware rejected request: %d", status)
	}
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims())
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthMiddleware(models.AuthConfig{Enabled: true, Secret: testSecret}).Verify(s); err == nil {
		t.Fatal("HS512 token accepted")
	}
}
