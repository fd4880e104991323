package timeline

import (
	"context"
	"errors"
	"sync"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"
	"timeline-cache/core/notify"
)

// ErrPagerClosed is returned by Next after Close.
var ErrPagerClosed = errors.New("pager closed")

// ObserveOptions select the window a pager reads.
type ObserveOptions struct {
	// Ascending returns the oldest entries first.
	Ascending bool
	// Limit caps the items of a page; zero uses the service default.
	Limit int
}

// Page is one consistent snapshot of a bucket.
type Page struct {
	ref          model.BucketRef
	svc          *Service
	items        []*model.JoinedStatus
	state        State
	placeholders int
}

// Bucket names the bucket the page was read from.
func (p *Page) Bucket() model.BucketRef { return p.ref }

// Len counts the items plus the placeholder slots of an append in flight.
func (p *Page) Len() int { return len(p.items) + p.placeholders }

// Get returns item i, or nil for a placeholder slot.
func (p *Page) Get(i int) *model.JoinedStatus {
	if i < 0 || i >= len(p.items) {
		return nil
	}
	return p.items[i]
}

// Items returns the loaded items in read order.
func (p *Page) Items() []*model.JoinedStatus { return p.items }

func (p *Page) State() State { return p.state }

// Err is the error of the last failed load, if the bucket is in that state.
func (p *Page) Err() error {
	if p.state.Kind == Failed {
		return p.state.Err
	}
	return nil
}

func (p *Page) EndOfStream() bool { return p.state.appendDone() }

// LoadMore requests the next older page of the bucket.
func (p *Page) LoadMore(ctx context.Context) error {
	return p.svc.LoadMore(ctx, p.ref)
}

// Pager is a pull-based view of one bucket. The first Next returns the
// current snapshot; each following call blocks until the bucket changed.
type Pager struct {
	svc    *Service
	ref    model.BucketRef
	opts   ObserveOptions
	events <-chan notify.Event
	cancel func()

	done      chan struct{}
	closeOnce sync.Once
	started   bool
}

// Next returns the next snapshot.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	select {
	case <-p.done:
		return nil, ErrPagerClosed
	default:
	}
	if p.started {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, ErrPagerClosed
		case <-p.events:
		}
	}
	p.started = true
	return p.svc.Snapshot(ctx, p.ref, p.opts)
}

// Close releases the subscription. Pending and future Next calls fail.
func (p *Pager) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		close(p.done)
	})
}

// snapshot reads the bucket and resolves its statuses in one read-only
// transaction.
func snapshot(ctx context.Context, store *cache.Store, ref model.BucketRef, q cache.EntryQuery) ([]*model.JoinedStatus, error) {
	var items []*model.JoinedStatus
	err := store.Read(ctx, func(tx *cache.Tx) error {
		entries, err := tx.Entries(ref.Account, ref.Name, q)
		if err != nil {
			return err
		}
		keys := make([]model.MicroBlogKey, len(entries))
		for i, e := range entries {
			keys[i] = e.StatusKey
		}
		joined, err := tx.Joined(ref.Account, keys)
		if err != nil {
			return err
		}
		items = make([]*model.JoinedStatus, 0, len(entries))
		for _, k := range keys {
			if j, ok := joined[k]; ok {
				items = append(items, j)
			}
		}
		return nil
	})
	return items, err
}
