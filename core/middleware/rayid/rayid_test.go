package rayid

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(New())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(FromCtx(c))
	})
	return app
}

func TestNew_MintsID(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	rid := resp.Header.Get(Header)
	_, err = uuid.Parse(rid)
	assert.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, rid, string(body))
}

func TestNew_KeepsIncomingID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(Header, "trace-123")

	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-123", resp.Header.Get(Header))
}
