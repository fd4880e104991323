package timeline

import (
	"timeline-cache/core/notify"
	"timeline-cache/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the timeline feature.
func NewFeature(engine *reconcile.Engine, broker *notify.Broker, logger *zap.Logger, cfg Config) *Feature {
	svc := NewService(engine, broker, logger, cfg)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Service exposes the service so platform sources can be registered.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "timeline"
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
