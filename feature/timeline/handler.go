package timeline

import (
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"timeline-cache/core/logger"
	"timeline-cache/core/model"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for timelines.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the timeline routes. Account keys and bucket
// names are path-escaped.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/timeline")
	group.Get("/", h.HandleListBuckets)
	group.Get("/:account/:bucket", h.HandleGetPage)
	group.Get("/:account/:bucket/state", h.HandleGetState)
	group.Post("/:account/:bucket/refresh", h.handleLoad(Refresh))
	group.Post("/:account/:bucket/prepend", h.handleLoad(Prepend))
	group.Post("/:account/:bucket/load-more", h.handleLoad(Append))
}

type stateView struct {
	State       string `json:"state"`
	Direction   string `json:"direction,omitempty"`
	EndOfStream bool   `json:"end_of_stream"`
	Error       string `json:"error,omitempty"`
}

func viewState(s State) stateView {
	v := stateView{State: s.Kind.String(), EndOfStream: s.EndOfStream}
	if s.Kind == Fetching {
		v.Direction = s.Direction.String()
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

type userView struct {
	Key       string            `json:"key"`
	Platform  string            `json:"platform"`
	Name      string            `json:"name"`
	Handle    string            `json:"handle"`
	AvatarURL string            `json:"avatar_url,omitempty"`
	Kind      model.ContentKind `json:"kind"`
	Content   any               `json:"content"`
}

type statusView struct {
	Key        string                 `json:"key"`
	Platform   string                 `json:"platform"`
	Kind       model.ContentKind      `json:"kind"`
	CreatedAt  time.Time              `json:"created_at"`
	User       *userView              `json:"user,omitempty"`
	Content    any                    `json:"content"`
	References map[string]*statusView `json:"references,omitempty"`
}

func viewStatus(j *model.JoinedStatus) *statusView {
	if j == nil {
		return nil
	}
	v := &statusView{
		Key:       j.Status.StatusKey.String(),
		Platform:  string(j.Status.Platform),
		Kind:      j.Status.Content.Kind(),
		CreatedAt: j.Status.CreatedAt,
		Content:   j.Status.Content,
	}
	if j.User != nil {
		v.User = &userView{
			Key:       j.User.UserKey.String(),
			Platform:  string(j.User.Platform),
			Name:      j.User.Name,
			Handle:    j.User.Handle,
			AvatarURL: j.User.AvatarURL,
			Kind:      j.User.Content.Kind(),
			Content:   j.User.Content,
		}
	}
	for _, ref := range j.References {
		if v.References == nil {
			v.References = make(map[string]*statusView)
		}
		v.References[string(ref.Type)] = viewStatus(ref.Status)
	}
	return v
}

type pageView struct {
	Account string        `json:"account"`
	Bucket  string        `json:"bucket"`
	State   stateView     `json:"state"`
	Items   []*statusView `json:"items"`
}

// MarshalJSON renders the page with its statuses resolved.
func (p *Page) MarshalJSON() ([]byte, error) {
	view := pageView{
		Account: p.ref.Account.String(),
		Bucket:  p.ref.Name,
		State:   viewState(p.state),
		Items:   make([]*statusView, 0, len(p.items)),
	}
	for _, item := range p.items {
		view.Items = append(view.Items, viewStatus(item))
	}
	return json.Marshal(view)
}

func bucketRef(c *fiber.Ctx) (model.BucketRef, error) {
	rawAccount, err := url.PathUnescape(c.Params("account"))
	if err != nil {
		return model.BucketRef{}, err
	}
	account, err := model.ParseKey(rawAccount)
	if err != nil {
		return model.BucketRef{}, err
	}
	bucket, err := url.PathUnescape(c.Params("bucket"))
	if err != nil {
		return model.BucketRef{}, err
	}
	return model.BucketRef{Account: account, Name: bucket}, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// HandleListBuckets lists the buckets that can be loaded.
func (h *Handler) HandleListBuckets(c *fiber.Ctx) error {
	refs := h.service.Buckets()
	out := make([]fiber.Map, 0, len(refs))
	for _, ref := range refs {
		out = append(out, fiber.Map{
			"account": ref.Account.String(),
			"bucket":  ref.Name,
			"state":   viewState(h.service.State(ref)),
		})
	}
	return c.JSON(out)
}

// HandleGetPage returns the cached items of a bucket.
// Query parameters: limit, ascending.
func (h *Handler) HandleGetPage(c *fiber.Ctx) error {
	ref, err := bucketRef(c)
	if err != nil {
		return badRequest(c, err)
	}
	l := logger.WithRayID(h.service.logger, c)

	page, err := h.service.Snapshot(c.Context(), ref, ObserveOptions{
		Limit:     c.QueryInt("limit", 0),
		Ascending: c.QueryBool("ascending", false),
	})
	if err != nil {
		l.Error("Reading bucket failed", zap.String("bucket", ref.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(page)
}

// HandleGetState returns the load state of a bucket.
func (h *Handler) HandleGetState(c *fiber.Ctx) error {
	ref, err := bucketRef(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(viewState(h.service.State(ref)))
}

func (h *Handler) handleLoad(dir Direction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := bucketRef(c)
		if err != nil {
			return badRequest(c, err)
		}
		l := logger.WithRayID(h.service.logger, c)

		err = h.service.load(c.UserContext(), ref, dir)
		switch {
		case err == nil:
			return c.JSON(viewState(h.service.State(ref)))
		case errors.Is(err, ErrUnknownBucket):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		default:
			var terr *TransportError
			status := fiber.StatusInternalServerError
			if errors.As(err, &terr) {
				status = fiber.StatusBadGateway
			}
			l.Error("Load failed", zap.String("bucket", ref.String()), zap.Stringer("direction", dir), zap.Error(err))
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
	}
}
