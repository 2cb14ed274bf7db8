package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupVersionApp() *fiber.App {
	app := fiber.New()
	app.Use(VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiVersion").(string))
	})
	return app
}

func TestVersionMiddlewareDefaultsAndEchoes(t *testing.T) {
	app := setupVersionApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Api-Version"); got != "1.0.0" {
		t.Errorf("Expected default version echoed as 1.0.0, got %s", got)
	}
}

func TestVersionMiddlewareResolvesAlias(t *testing.T) {
	app := setupVersionApp()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Api-Version", "1.0")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Api-Version"); got != "1.0.0" {
		t.Errorf("Expected alias 1.0 resolved to 1.0.0, got %s", got)
	}
}
