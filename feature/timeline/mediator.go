package timeline

import (
	"context"
	"sync"

	"timeline-cache/core/cache"
	"timeline-cache/core/logger"
	"timeline-cache/core/model"
	"timeline-cache/core/notify"
	"timeline-cache/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Mediator drives the loads of every bucket: it reads cursors from the
// cache, calls the source, merges the result and tracks the bucket state.
// Concurrent loads of the same bucket and direction share one fetch.
type Mediator struct {
	engine   *reconcile.Engine
	pub      notify.Publisher
	log      *zap.Logger
	pageSize int

	group singleflight.Group

	mu     sync.RWMutex
	states map[model.BucketRef]State
	// grown counts the entries loaded into a bucket since its last refresh.
	grown map[model.BucketRef]int
}

// NewMediator creates a mediator. pub may be nil.
func NewMediator(engine *reconcile.Engine, pub notify.Publisher, log *zap.Logger, pageSize int) *Mediator {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Mediator{
		engine:   engine,
		pub:      pub,
		log:      log,
		pageSize: pageSize,
		states:   make(map[model.BucketRef]State),
		grown:    make(map[model.BucketRef]int),
	}
}

// State returns the current state of a bucket.
func (m *Mediator) State(ref model.BucketRef) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[ref]
}

// Grown returns how many entries appends and prepends added to ref since
// its last successful refresh.
func (m *Mediator) Grown(ref model.BucketRef) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.grown[ref]
}

func (m *Mediator) grow(ref model.BucketRef, dir Direction, n int) {
	m.mu.Lock()
	if dir == Refresh {
		delete(m.grown, ref)
	} else {
		m.grown[ref] += n
	}
	m.mu.Unlock()
}

func (m *Mediator) setState(ref model.BucketRef, s State) {
	m.mu.Lock()
	m.states[ref] = s
	m.mu.Unlock()
	if m.pub != nil {
		m.pub.Publish(notify.Event{Account: ref.Account.String(), Bucket: ref.Name, Kind: notify.EventState})
	}
}

// Load runs one load of src in direction dir. Concurrent calls for the same
// bucket and direction join the first one, which runs on the first caller's
// ctx. A joined caller whose own ctx ends stops waiting with ctx.Err().
func (m *Mediator) Load(ctx context.Context, src Source, dir Direction) error {
	ref := src.Bucket()
	ch := m.group.DoChan(ref.String()+"#"+dir.String(), func() (any, error) {
		return nil, m.load(ctx, src, dir)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Mediator) load(ctx context.Context, src Source, dir Direction) error {
	ref := src.Bucket()
	log := logger.ForBucket(m.log, ref.Account.String(), ref.Name).With(zap.Stringer("direction", dir))
	prev := m.State(ref)

	if dir == Append && prev.appendDone() {
		return nil
	}

	failed := func(err error) State {
		return State{Kind: Failed, Err: err, EndOfStream: prev.EndOfStream}
	}

	req, err := m.request(ctx, ref, dir)
	if err != nil {
		m.setState(ref, failed(err))
		return err
	}

	if req.First == nil {
		switch dir {
		case Append:
			m.setState(ref, State{Kind: Success, EndOfStream: true})
			return nil
		case Prepend:
			m.setState(ref, State{Kind: Success, EndOfStream: prev.EndOfStream})
			return nil
		}
		if seeder, ok := src.(Seeder); ok {
			if err := m.seed(ctx, ref, seeder.Seed()); err != nil {
				log.Warn("Seeding bucket failed", zap.Error(err))
			}
		}
	}

	m.setState(ref, State{Kind: Fetching, Direction: dir, EndOfStream: prev.EndOfStream})

	resp, err := src.Load(ctx, req)
	if ctx.Err() != nil {
		// Abandoned before anything was written.
		m.setState(ref, prev)
		return ctx.Err()
	}
	if err != nil {
		terr := &TransportError{Bucket: ref, Err: err}
		log.Warn("Load failed", zap.Error(err))
		m.setState(ref, failed(terr))
		return terr
	}
	ctx = context.WithoutCancel(ctx)
	for _, merr := range resp.Errors {
		log.Warn("Skipping item", zap.Error(merr))
	}

	opts := reconcile.MergeOptions{}
	if dir == Refresh && src.RefreshMode() == RefreshReplace {
		opts.ReplaceBucket = &ref
	}
	if !resp.Batch.IsEmpty() || opts.ReplaceBucket != nil {
		if _, err := m.engine.Merge(ctx, resp.Batch, opts); err != nil {
			m.setState(ref, failed(err))
			return err
		}
	}

	eos, err := m.endOfStream(ctx, ref, dir, prev, resp)
	if err != nil {
		m.setState(ref, failed(err))
		return err
	}
	m.grow(ref, dir, len(resp.Batch.Entries))
	m.setState(ref, State{Kind: Success, EndOfStream: eos})
	log.Debug("Load finished",
		zap.Int("entries", len(resp.Batch.Entries)),
		zap.Int("skipped", len(resp.Errors)),
		zap.Bool("end_of_stream", eos),
	)
	return nil
}

// request builds the load request from the cached edges of the bucket.
func (m *Mediator) request(ctx context.Context, ref model.BucketRef, dir Direction) (Request, error) {
	req := Request{Direction: dir, PageSize: m.pageSize}
	err := m.engine.Store().Read(ctx, func(tx *cache.Tx) error {
		first, last, err := tx.Edges(ref.Account, ref.Name)
		if err != nil || first == nil {
			return err
		}
		req.First, req.Last = first, last
		if req.FirstStatus, err = tx.FindStatus(ref.Account, first.StatusKey); err != nil {
			return err
		}
		req.LastStatus, err = tx.FindStatus(ref.Account, last.StatusKey)
		return err
	})
	return req, err
}

// seed places an already cached status into its own empty bucket so it can
// be shown while the rest of the conversation loads.
func (m *Mediator) seed(ctx context.Context, ref model.BucketRef, key model.MicroBlogKey) error {
	var cached bool
	err := m.engine.Store().Read(ctx, func(tx *cache.Tx) error {
		st, err := tx.FindStatus(ref.Account, key)
		cached = st != nil
		return err
	})
	if err != nil || !cached {
		return err
	}
	batch := reconcile.Batch{}
	batch.AddEntry(ref.Account, ref.Name, key, 0)
	_, err = m.engine.Merge(ctx, batch, reconcile.MergeOptions{})
	return err
}

// endOfStream decides whether appending can continue after a load. An
// empty page ends the stream; a prepend never changes it.
func (m *Mediator) endOfStream(ctx context.Context, ref model.BucketRef, dir Direction, prev State, resp *Response) (bool, error) {
	switch dir {
	case Prepend:
		return prev.EndOfStream, nil
	case Append:
		return resp.EndOfStream || len(resp.Batch.Entries) == 0, nil
	}
	if resp.EndOfStream {
		return true, nil
	}
	if len(resp.Batch.Entries) > 0 {
		return false, nil
	}
	var exists bool
	err := m.engine.Store().Read(ctx, func(tx *cache.Tx) error {
		var err error
		exists, err = tx.BucketExists(ref.Account, ref.Name)
		return err
	})
	return !exists, err
}
