package loader

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
	loaded  bool
}

func (s *stubFeature) Name() string    { return s.name }
func (s *stubFeature) IsEnabled() bool { return s.enabled }
func (s *stubFeature) Load(fiber.Router) error {
	s.loaded = true
	return s.err
}

func TestManager_LoadAll(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mgr := NewManager(zap.New(core))

	on := &stubFeature{name: "timeline", enabled: true}
	off := &stubFeature{name: "integrity"}
	mgr.Register(on)
	mgr.Register(off)

	require.NoError(t, mgr.LoadAll(fiber.New()))
	assert.True(t, on.loaded)
	assert.False(t, off.loaded)
	assert.Len(t, mgr.Features(), 2)
	assert.Equal(t, 1, logs.FilterMessage("Feature disabled").Len())
}

func TestManager_LoadAllStopsOnError(t *testing.T) {
	mgr := NewManager(nil)
	failing := &stubFeature{name: "a", enabled: true, err: errors.New("boom")}
	next := &stubFeature{name: "b", enabled: true}
	mgr.Register(failing)
	mgr.Register(next)

	err := mgr.LoadAll(fiber.New())
	assert.ErrorContains(t, err, "load feature a: boom")
	assert.False(t, next.loaded)
}

func TestManager_DuplicateName(t *testing.T) {
	mgr := NewManager(nil)
	mgr.Register(&stubFeature{name: "a"})
	assert.Panics(t, func() { mgr.Register(&stubFeature{name: "a"}) })
}
