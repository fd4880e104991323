package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"testing"

	"timeline-cache/core/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(fx *fixture) *fiber.App {
	app := fiber.New()
	NewHandler(fx.service).RegisterRoutes(app)
	return app
}

func path(ref model.BucketRef, suffix string) string {
	return "/timeline/" + url.PathEscape(ref.Account.String()) + "/" + url.PathEscape(ref.Name) + suffix
}

func TestHandler_RefreshAndRead(t *testing.T) {
	fx := newFixture(t)
	fx.service.Register(&fakeSource{ref: home, load: func(context.Context, Request) (*Response, error) {
		return &Response{Batch: page(home, 2, 1)}, nil
	}})
	app := newApp(fx)

	resp, err := app.Test(httptest.NewRequest("POST", path(home, "/refresh"), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", path(home, "?limit=1"), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var view struct {
		Bucket string `json:"bucket"`
		State  struct {
			State string `json:"state"`
		} `json:"state"`
		Items []struct {
			Key  string `json:"key"`
			Kind string `json:"kind"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, model.BucketHome, view.Bucket)
	assert.Equal(t, "success", view.State.State)
	require.Len(t, view.Items, 1)
	assert.Equal(t, string(model.KindMastodonStatus), view.Items[0].Kind)

	resp, err = app.Test(httptest.NewRequest("GET", "/timeline/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandler_Errors(t *testing.T) {
	fx := newFixture(t)
	fx.service.Register(&fakeSource{ref: home, load: func(context.Context, Request) (*Response, error) {
		return nil, errors.New("upstream down")
	}})
	app := newApp(fx)

	resp, err := app.Test(httptest.NewRequest("POST", path(home, "/refresh"), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", path(home, "/state"), nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "upstream down")

	other := model.BucketRef{Account: acc1, Name: "list_1"}
	resp, err = app.Test(httptest.NewRequest("POST", path(other, "/load-more"), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/timeline/no-host/home", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
