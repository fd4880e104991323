// Package rayid tags every request with a ray id used to correlate log lines.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// Header carries the ray id on requests and responses.
	Header = "X-Ray-ID"
	// LocalsKey is where handlers find the ray id; see logger.WithRayID.
	LocalsKey = "ray_id"
)

// New returns the middleware. An incoming X-Ray-ID is kept so that a caller
// can follow its own id through the logs; otherwise a fresh one is minted.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(Header)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Locals(LocalsKey, rid)
		c.Set(Header, rid)
		return c.Next()
	}
}

// FromCtx returns the ray id of the request, or "".
func FromCtx(c *fiber.Ctx) string {
	rid, _ := c.Locals(LocalsKey).(string)
	return rid
}
