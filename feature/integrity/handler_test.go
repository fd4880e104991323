package integrity

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"timeline-cache/core/cache/cachetest"
	"timeline-cache/core/storage"
	"timeline-cache/core/storage/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var storageCfg = storage.Config{Bucket: "test-bucket", Prefix: "snapshots/"}

func setupTestApp(t *testing.T, client storage.Client) *fiber.App {
	app := fiber.New()
	feature := NewFeature(cachetest.NewStore(t, nil), client, storageCfg, zap.NewNop())
	require.NoError(t, feature.Load(app))
	return app
}

func decodeBody(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestLoader(t *testing.T) {
	feature := NewFeature(cachetest.NewStore(t, nil), nil, storageCfg, zap.NewNop())
	assert.Equal(t, "integrity", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NotNil(t, feature.Service())
}

func TestHandleSchemaCheck(t *testing.T) {
	app := setupTestApp(t, nil)

	code, body := decodeBody(t, app, "GET", "/integrity/schema")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["matched"])
}

func TestHandleConsistencyCheck(t *testing.T) {
	app := setupTestApp(t, nil)

	code, body := decodeBody(t, app, "GET", "/integrity/consistency")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["healthy"])

	code, body = decodeBody(t, app, "GET", "/integrity/consistency?fix=true")
	assert.Equal(t, 200, code)
	assert.Equal(t, "fixed", body["status"])
}

func TestHandleStorageCheck(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		app := setupTestApp(t, nil)
		code, _ := decodeBody(t, app, "GET", "/integrity/storage")
		assert.Equal(t, fiber.StatusServiceUnavailable, code)
	})

	t.Run("Checked", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", mock.Anything, "test-bucket").Return(true, nil)
		ch := make(chan minio.ObjectInfo)
		close(ch)
		m.On("ListObjects", mock.Anything, "test-bucket", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

		app := setupTestApp(t, m)
		code, body := decodeBody(t, app, "GET", "/integrity/storage")
		assert.Equal(t, 200, code)
		assert.Equal(t, "checked", body["status"])
	})

	t.Run("Fix creates bucket", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", mock.Anything, "test-bucket").Return(false, nil)
		m.On("MakeBucket", mock.Anything, "test-bucket", mock.Anything).Return(nil)

		app := setupTestApp(t, m)
		code, body := decodeBody(t, app, "GET", "/integrity/storage?fix=true")
		assert.Equal(t, 200, code)
		assert.Equal(t, "fixed", body["status"])
		m.AssertCalled(t, "MakeBucket", mock.Anything, "test-bucket", mock.Anything)
	})
}

func TestHandleIntegrityCheck(t *testing.T) {
	app := setupTestApp(t, nil)

	code, body := decodeBody(t, app, "GET", "/integrity")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, "schema")
	assert.Contains(t, body, "consistency")
	assert.Equal(t, map[string]any{"status": "disabled"}, body["storage"])
}
