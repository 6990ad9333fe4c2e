package system

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"go-glsync/internal/config"

	"github.com/gofiber/fiber/v2"
)

func TestDebugMeWithSkipAuth(t *testing.T) {
	app := fiber.New()
	NewDebugApi(NewDebugController(), &config.Config{SkipAuth: true}).Setup(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/debug/me", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["user_id"] != "dev-operator" {
		t.Errorf("user_id = %v", body["user_id"])
	}
}

func TestDebugMeRequiresToken(t *testing.T) {
	app := fiber.New()
	NewDebugApi(NewDebugController(), &config.Config{}).Setup(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/debug/me", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
