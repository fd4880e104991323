package bluesky

import (
	"context"
	"fmt"
	"time"

	"timeline-cache/core/model"
	"timeline-cache/core/platform/bluesky"
	"timeline-cache/feature/timeline"
)

// Service is the subset of the app.bsky API the sources need.
type Service interface {
	Timeline(ctx context.Context, q bluesky.PageQuery) (*bluesky.FeedPage, error)
	AuthorFeed(ctx context.Context, actor string, q bluesky.PageQuery) (*bluesky.FeedPage, error)
	CustomFeed(ctx context.Context, feedURI string, q bluesky.PageQuery) (*bluesky.FeedPage, error)
	// Notifications returns a page of notifications together with the posts
	// they refer to.
	Notifications(ctx context.Context, q bluesky.PageQuery) (*bluesky.NotificationPage, error)
	PostThread(ctx context.Context, uri string) (*bluesky.ThreadViewPost, error)
}

func timeOf(sortID int64) string {
	return time.UnixMilli(sortID).UTC().Format(time.RFC3339Nano)
}

// pageQuery only pages backwards. Bluesky has no cursor for newer items, so
// Prepend reports end of stream and Refresh starts from the top.
func pageQuery(req timeline.Request) (bluesky.PageQuery, bool) {
	q := bluesky.PageQuery{Limit: req.PageSize}
	switch req.Direction {
	case timeline.Prepend:
		return q, false
	case timeline.Append:
		q.Cursor = sortTimeCursor(req.Last)
	}
	return q, true
}

type feedSource struct {
	bucket model.BucketRef
	mode   timeline.RefreshMode
	fetch  func(ctx context.Context, q bluesky.PageQuery) (*bluesky.FeedPage, error)
}

func (s *feedSource) Bucket() model.BucketRef           { return s.bucket }
func (s *feedSource) RefreshMode() timeline.RefreshMode { return s.mode }

func (s *feedSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	q, ok := pageQuery(req)
	if !ok {
		return timeline.EndOfStream(), nil
	}
	page, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return timeline.EndOfStream(), nil
	}
	batch, errs := MapFeed(s.bucket.Account, s.bucket.Name, page.Feed)
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: page.Cursor == ""}, nil
}

// NewHomeSource pages the following timeline, merging on refresh.
func NewHomeSource(svc Service, account model.MicroBlogKey) timeline.Source {
	return &feedSource{
		bucket: model.BucketRef{Account: account, Name: model.BucketHome},
		mode:   timeline.RefreshMerge,
		fetch:  svc.Timeline,
	}
}

// NewFeedSource pages a custom feed generator into a list bucket.
func NewFeedSource(svc Service, account model.MicroBlogKey, feedURI string) timeline.Source {
	return &feedSource{
		bucket: model.BucketRef{Account: account, Name: model.ListBucket(feedURI)},
		mode:   timeline.RefreshMerge,
		fetch: func(ctx context.Context, q bluesky.PageQuery) (*bluesky.FeedPage, error) {
			return svc.CustomFeed(ctx, feedURI, q)
		},
	}
}

// NewAuthorSource pages the posts of user, whose key id is a DID.
func NewAuthorSource(svc Service, account, user model.MicroBlogKey) timeline.Source {
	return &feedSource{
		bucket: model.BucketRef{Account: account, Name: model.UserBucket(user)},
		mode:   timeline.RefreshReplace,
		fetch: func(ctx context.Context, q bluesky.PageQuery) (*bluesky.FeedPage, error) {
			return svc.AuthorFeed(ctx, user.ID, q)
		},
	}
}

// NotificationSource pages all notifications.
type NotificationSource struct {
	svc    Service
	bucket model.BucketRef
}

func NewNotificationSource(svc Service, account model.MicroBlogKey) *NotificationSource {
	return &NotificationSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.NotificationBucket("all")},
	}
}

func (s *NotificationSource) Bucket() model.BucketRef           { return s.bucket }
func (s *NotificationSource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }

func (s *NotificationSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	q, ok := pageQuery(req)
	if !ok {
		return timeline.EndOfStream(), nil
	}
	page, err := s.svc.Notifications(ctx, q)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return timeline.EndOfStream(), nil
	}
	batch, errs := MapNotifications(s.bucket.Account, s.bucket.Name, *page)
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: page.Cursor == ""}, nil
}

// ThreadSource loads the thread around one post.
type ThreadSource struct {
	svc    Service
	bucket model.BucketRef
	post   model.MicroBlogKey
}

func NewThreadSource(svc Service, account, post model.MicroBlogKey) *ThreadSource {
	return &ThreadSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.StatusBucket(post)},
		post:   post,
	}
}

func (s *ThreadSource) Bucket() model.BucketRef           { return s.bucket }
func (s *ThreadSource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }
func (s *ThreadSource) Seed() model.MicroBlogKey          { return s.post }

func (s *ThreadSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	if req.Direction != timeline.Refresh {
		return timeline.EndOfStream(), nil
	}
	thread, err := s.svc.PostThread(ctx, s.post.ID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("post %s not found", s.post)
	}
	batch, errs := MapThread(s.bucket.Account, s.bucket.Name, *thread)
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: true}, nil
}
