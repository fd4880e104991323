package integrity

import (
	"timeline-cache/core/cache"
	"timeline-cache/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the integrity feature.
func NewFeature(store *cache.Store, client storage.Client, storageCfg storage.Config, logger *zap.Logger) *Feature {
	svc := NewService(store, client, storageCfg, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Service exposes the service to the CLI.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "integrity"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
