package snapshot

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

// NewFeature creates the snapshot feature. A nil client disables it.
func NewFeature(client storage.Client, storageCfg storage.Config, store *cache.Store, logger *zap.Logger, cfg Config) *Feature {
	svc := NewService(client, storageCfg, store, logger, cfg)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Service exposes the service to the CLI.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "snapshot"
}

// IsEnabled reports whether object storage is configured.
func (f *Feature) IsEnabled() bool {
	return f.service.client != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
