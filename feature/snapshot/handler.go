package snapshot

import (
	"errors"
	"net/url"

	"timeline-cache/core/logger"
	"timeline-cache/core/model"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for snapshots.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the snapshot routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/snapshots")
	group.Get("/", h.HandleList)
	group.Post("/import", h.HandleImport)
	group.Get("/:account", h.HandleList)
	group.Post("/:account", h.HandleExport)
}

func accountParam(c *fiber.Ctx) (model.MicroBlogKey, error) {
	raw, err := url.PathUnescape(c.Params("account"))
	if err != nil {
		return model.MicroBlogKey{}, err
	}
	return model.ParseKey(raw)
}

// HandleList lists snapshots, optionally for one account.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	var account model.MicroBlogKey
	if c.Params("account") != "" {
		var err error
		if account, err = accountParam(c); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	infos, err := h.service.List(c.Context(), account)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing snapshots failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if infos == nil {
		infos = []Info{}
	}
	return c.JSON(infos)
}

// HandleExport writes a new snapshot of the account.
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	account, err := accountParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l := logger.WithRayID(h.service.logger, c)

	res, err := h.service.Export(c.Context(), account)
	if err != nil {
		l.Error("Snapshot export failed", zap.String("account", account.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

type importRequest struct {
	Key string `json:"key"`
}

// HandleImport restores the snapshot named in the body.
func (h *Handler) HandleImport(c *fiber.Ctx) error {
	var req importRequest
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be {\"key\": \"<object key>\"}"})
	}
	l := logger.WithRayID(h.service.logger, c)

	res, err := h.service.Import(c.Context(), req.Key)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ErrForeignRow) {
			status = fiber.StatusUnprocessableEntity
		}
		l.Error("Snapshot import failed", zap.String("key", req.Key), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}
