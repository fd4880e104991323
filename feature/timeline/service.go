package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"
	"timeline-cache/core/notify"
	"timeline-cache/core/reconcile"

	"go.uber.org/zap"
)

// ErrUnknownBucket is returned when a load targets a bucket with no source.
var ErrUnknownBucket = errors.New("no source registered for bucket")

// Service is the entry point for readers: it owns the source registry, the
// mediator and the subscriptions pagers wait on.
type Service struct {
	store    *cache.Store
	mediator *Mediator
	broker   *notify.Broker
	logger   *zap.Logger
	cfg      Config

	mu      sync.RWMutex
	sources map[model.BucketRef]Source
}

// NewService creates a timeline service. Commits of store must be published
// to broker for pagers to wake up.
func NewService(engine *reconcile.Engine, broker *notify.Broker, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		store:    engine.Store(),
		mediator: NewMediator(engine, broker, logger, cfg.PageSize),
		broker:   broker,
		logger:   logger,
		cfg:      cfg,
		sources:  make(map[model.BucketRef]Source),
	}
}

// Register makes src the source of its bucket, replacing any earlier one.
func (s *Service) Register(src Source) {
	s.mu.Lock()
	s.sources[src.Bucket()] = src
	s.mu.Unlock()
}

// Source returns the source registered for ref.
func (s *Service) Source(ref model.BucketRef) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[ref]
	return src, ok
}

// Buckets lists the registered buckets.
func (s *Service) Buckets() []model.BucketRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.BucketRef, 0, len(s.sources))
	for ref := range s.sources {
		out = append(out, ref)
	}
	return out
}

// State returns the load state of ref.
func (s *Service) State(ref model.BucketRef) State {
	return s.mediator.State(ref)
}

func (s *Service) load(ctx context.Context, ref model.BucketRef, dir Direction) error {
	src, ok := s.Source(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, ref)
	}
	return s.mediator.Load(ctx, src, dir)
}

// Refresh loads the newest page of ref.
func (s *Service) Refresh(ctx context.Context, ref model.BucketRef) error {
	return s.load(ctx, ref, Refresh)
}

// Prepend loads the items newer than the newest cached one.
func (s *Service) Prepend(ctx context.Context, ref model.BucketRef) error {
	return s.load(ctx, ref, Prepend)
}

// LoadMore loads the next older page of ref.
func (s *Service) LoadMore(ctx context.Context, ref model.BucketRef) error {
	return s.load(ctx, ref, Append)
}

// Observe opens a pager on ref. The pager must be closed.
func (s *Service) Observe(ref model.BucketRef, opts ObserveOptions) *Pager {
	events, cancel := s.broker.Subscribe(ref.Account.String(), ref.Name)
	return &Pager{
		svc:    s,
		ref:    ref,
		opts:   opts,
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Snapshot reads the current page of ref. The window starts at the
// configured limit and widens by every entry loaded since the last refresh,
// so pages fetched by LoadMore stay visible.
func (s *Service) Snapshot(ctx context.Context, ref model.BucketRef, opts ObserveOptions) (*Page, error) {
	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.SnapshotLimit && s.cfg.SnapshotLimit > 0 {
		limit = s.cfg.SnapshotLimit
	}
	if limit > 0 {
		limit += s.mediator.Grown(ref)
	}
	state := s.State(ref)
	items, err := snapshot(ctx, s.store, ref, cache.EntryQuery{Ascending: opts.Ascending, Limit: limit})
	if err != nil {
		return nil, err
	}
	page := &Page{ref: ref, svc: s, items: items, state: state}
	if state.Kind == Fetching && state.Direction == Append {
		page.placeholders = s.mediator.pageSize
	}
	return page, nil
}
