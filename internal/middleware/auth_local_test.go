package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubAuthenticator struct {
	users map[string]*models.User
	fail  error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, models.Errorf(models.ErrUnauthenticated, "Not authorized, token failed")
}

func newProtectedApp(authenticator Authenticator) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protect(authenticator), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":       CurrentUser(c).ID.Hex(),
			"localsId": c.Locals(LocalUserID),
		})
	})
	return app
}

func readMessage(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	return out
}

func TestProtect(t *testing.T) {
	alice := &models.User{ID: primitive.NewObjectID(), Username: "alice"}
	app := newProtectedApp(&stubAuthenticator{users: map[string]*models.User{"good": alice}})

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantMsg    string
	}{
		{"header token", "Bearer good", "", fiber.StatusOK, ""},
		{"query token", "", "?token=good", fiber.StatusOK, ""},
		{"no token", "", "", fiber.StatusUnauthorized, "Not authorized, no token"},
		{"malformed header", "Token good", "", fiber.StatusUnauthorized, "Not authorized, no token"},
		{"bad token", "Bearer nope", "", fiber.StatusUnauthorized, "Not authorized, token failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			body := readMessage(t, resp.Body)
			if tt.wantMsg != "" && body["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %v", tt.wantMsg, body["message"])
			}
			if tt.wantStatus == fiber.StatusOK && (body["id"] != alice.ID.Hex() || body["localsId"] != alice.ID.Hex()) {
				t.Errorf("Expected user locals to be set, got %v", body)
			}
		})
	}
}

func TestProtectServerFault(t *testing.T) {
	app := newProtectedApp(&stubAuthenticator{fail: errors.New("db down")})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", resp.StatusCode)
	}
	if body := readMessage(t, resp.Body); body["message"] != "Server error" {
		t.Errorf("Internal detail must not leak, got %v", body)
	}
}

func TestAuthRateLimiter(t *testing.T) {
	rl := NewRateLimitConfig(&config.Config{Environment: "production", RateLimitAPI: 10, RateLimitAuth: 2, RateLimitWebSocket: 5})
	if rl.AuthMax != 2 || rl.AuthExpiration != time.Minute {
		t.Fatalf("Unexpected limiter config: %+v", rl)
	}

	app := fiber.New()
	app.Post("/login", AuthRateLimiter(rl), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest("POST", "/login", nil))
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("attempt %d: expected 204, got %d", i+1, resp.StatusCode)
		}
	}

	resp, _ := app.Test(httptest.NewRequest("POST", "/login", nil))
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", resp.StatusCode)
	}
	if body := readMessage(t, resp.Body); body["retry_after"] != float64(60) {
		t.Errorf("Expected retry_after 60, got %v", body["retry_after"])
	}
}

func TestDevelopmentRelaxesLimits(t *testing.T) {
	rl := NewRateLimitConfig(&config.Config{Environment: "development", RateLimitAPI: 10, RateLimitAuth: 2, RateLimitWebSocket: 5})
	if rl.GlobalAPIMax != 50 || rl.WebSocketMax != 25 || rl.AuthMax != 2 {
		t.Errorf("Unexpected development limits: %+v", rl)
	}
}
