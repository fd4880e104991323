package timeline

import (
	"context"
	"fmt"

	"timeline-cache/core/model"
	"timeline-cache/core/reconcile"
)

// Direction is the direction of a paging load.
type Direction int

const (
	// Refresh loads the newest page.
	Refresh Direction = iota
	// Prepend loads items newer than the first cached entry.
	Prepend
	// Append loads items older than the last cached entry.
	Append
)

func (d Direction) String() string {
	switch d {
	case Refresh:
		return "refresh"
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "refresh":
		return Refresh, nil
	case "prepend":
		return Prepend, nil
	case "append":
		return Append, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// RefreshMode decides what a Refresh does with the entries already cached.
type RefreshMode int

const (
	// RefreshMerge keeps the bucket and dedupes the new page into it.
	RefreshMerge RefreshMode = iota
	// RefreshReplace clears the bucket inside the merge transaction.
	RefreshReplace
)

// Request describes one load. The cursor entries and their statuses come from
// the cached bucket, never from a previous response.
type Request struct {
	Direction Direction
	PageSize  int

	First       *model.PagingBucketEntry
	Last        *model.PagingBucketEntry
	FirstStatus *model.StatusRecord
	LastStatus  *model.StatusRecord
}

// Response is the mapped result of one load.
type Response struct {
	Batch reconcile.Batch
	// Errors holds the items that could not be mapped.
	Errors []error
	// EndOfStream is set by sources that know there is nothing further in
	// the requested direction, even if the page was not empty.
	EndOfStream bool
}

// EndOfStream is the response of a direction the source cannot page in.
func EndOfStream() *Response {
	return &Response{EndOfStream: true}
}

// Source fetches one bucket of one account from a platform service and maps
// the result. Implementations live next to their platform adapters.
type Source interface {
	Bucket() model.BucketRef
	RefreshMode() RefreshMode
	Load(ctx context.Context, req Request) (*Response, error)
}

// Seeder is implemented by sources whose bucket revolves around one status.
// When the bucket is empty and the status is cached, the mediator inserts it
// before fetching.
type Seeder interface {
	Seed() model.MicroBlogKey
}

// TransportError wraps a failure of the platform service.
type TransportError struct {
	Bucket model.BucketRef
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Bucket, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
