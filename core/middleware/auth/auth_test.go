package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(New(cfg))
	app.Get("/*", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestAuth(t *testing.T) {
	app := newApp(Config{ApiKey: "secret", Skip: []string{"/health"}})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/timelines", "", fiber.StatusUnauthorized},
		{"wrong", "/timelines", "nope", fiber.StatusForbidden},
		{"header", "/timelines", "secret", fiber.StatusOK},
		{"query", "/timelines?api_key=secret", "", fiber.StatusOK},
		{"skipped", "/health", "", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuth_DisabledWithoutKey(t *testing.T) {
	resp, err := newApp(Config{}).Test(httptest.NewRequest("GET", "/timelines", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
