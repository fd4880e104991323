package reconcile

import (
	"time"

	"timeline-cache/core/model"
)

// SortIDFunc chooses the sort id of the item at index within one page.
type SortIDFunc[T any] func(index int, item T) int64

// ThreadPosition sorts items by their reading position: the first item gets
// 0, the next -1 and so on, so that a newest-first read returns them in order.
func ThreadPosition[T any](index int, _ T) int64 {
	return -int64(index)
}

// MillisOf converts a timestamp into a sort id.
func MillisOf(t time.Time) int64 {
	return t.UnixMilli()
}

// MapOptions configure an adapter call.
type MapOptions[T any] struct {
	SortID SortIDFunc[T]
	// Emojis is the custom emoji table of the instance, attached to every
	// content that renders emoji by shortcode.
	Emojis map[string]string
}

// Option customizes MapOptions.
type Option[T any] func(*MapOptions[T])

// WithSortID overrides the sort id selector.
func WithSortID[T any](fn SortIDFunc[T]) Option[T] {
	return func(o *MapOptions[T]) { o.SortID = fn }
}

// WithEmojis attaches an emoji table.
func WithEmojis[T any](emojis map[string]string) Option[T] {
	return func(o *MapOptions[T]) { o.Emojis = emojis }
}

// BuildOptions applies opts over the adapter's default sort id selector.
func BuildOptions[T any](def SortIDFunc[T], opts []Option[T]) MapOptions[T] {
	o := MapOptions[T]{SortID: def}
	for _, opt := range opts {
		opt(&o)
	}
	if o.SortID == nil {
		o.SortID = def
	}
	return o
}

// Entry builds a bucket entry. An empty bucket name yields nil so adapters
// can map data that belongs to no bucket.
func Entry(account model.MicroBlogKey, bucket string, status model.MicroBlogKey, sortID int64) *model.PagingBucketEntry {
	if bucket == "" {
		return nil
	}
	return &model.PagingBucketEntry{
		AccountKey: account,
		BucketName: bucket,
		StatusKey:  status,
		SortID:     sortID,
	}
}

// AddEntry appends an entry for status unless bucket is empty.
func (b *Batch) AddEntry(account model.MicroBlogKey, bucket string, status model.MicroBlogKey, sortID int64) {
	if e := Entry(account, bucket, status, sortID); e != nil {
		b.Entries = append(b.Entries, *e)
	}
}
