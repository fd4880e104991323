package integrity

import (
	"errors"

	"timeline-cache/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/schema", h.HandleSchemaCheck)
	group.Get("/consistency", h.HandleConsistencyCheck)
	group.Get("/storage", h.HandleStorageCheck)
}

func section(report any, err error) any {
	switch {
	case errors.Is(err, ErrStorageDisabled):
		return fiber.Map{"status": "disabled"}
	case err != nil:
		return fiber.Map{"status": "error", "error": err.Error()}
	default:
		return report
	}
}

// HandleIntegrityCheck runs every check without fixing anything.
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := fiber.Map{}

	schemaReport, err := h.service.CheckSchema()
	report["schema"] = section(schemaReport, err)

	consistency, err := h.service.CheckConsistency(ctx)
	report["consistency"] = section(consistency, err)

	storageReport, err := h.service.CheckStorage(ctx)
	report["storage"] = section(storageReport, err)

	return c.JSON(report)
}

// HandleSchemaCheck checks the cache tables.
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckSchema()
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleConsistencyCheck checks the stored rows. ?fix=true removes dangling
// references; ?fix=true&users=true also removes orphan users.
func (h *Handler) HandleConsistencyCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	ctx := c.Context()

	if c.QueryBool("fix", false) {
		l.Info("Attempting to repair cache rows")
		fixed, err := h.service.FixConsistency(ctx, c.QueryBool("users", false))
		if err != nil {
			l.Error("Repair failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "fixed", "fixed": fixed})
	}

	report, err := h.service.CheckConsistency(ctx)
	if err != nil {
		l.Error("Consistency check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !report.Healthy {
		l.Warn("Cache inconsistencies detected",
			zap.Int("dangling_references", len(report.DanglingReferences)),
			zap.Int64("entries_without_status", report.EntriesWithoutStatus),
		)
	}
	return c.JSON(report)
}

// HandleStorageCheck checks and optionally fixes the snapshot bucket.
func (h *Handler) HandleStorageCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	ctx := c.Context()

	report, err := h.service.CheckStorage(ctx)
	if errors.Is(err, ErrStorageDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Storage check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !report.Healthy() && c.QueryBool("fix", false) {
		l.Info("Attempting to fix snapshot storage")
		if err := h.service.FixStorage(ctx, report); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to fix storage",
				"details": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "fixed", "report": report})
	}

	return c.JSON(fiber.Map{"status": "checked", "report": report})
}
