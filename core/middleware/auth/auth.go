// Package auth protects the HTTP API with a static API key.
package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// Config configures the middleware.
type Config struct {
	// ApiKey is the expected key. Empty disables the check.
	ApiKey string
	// Skip lists paths served without a key, such as health probes.
	Skip []string
}

// New returns a handler rejecting requests that carry neither a matching
// X-API-Key header nor an api_key query parameter.
func New(cfg Config) fiber.Handler {
	skip := make(map[string]struct{}, len(cfg.Skip))
	for _, p := range cfg.Skip {
		skip[p] = struct{}{}
	}
	expected := []byte(cfg.ApiKey)

	return func(c *fiber.Ctx) error {
		if cfg.ApiKey == "" {
			return c.Next()
		}
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		key := c.Get("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api key"})
		}
		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid api key"})
		}
		return c.Next()
	}
}
