package mastodon

import (
	"context"
	"fmt"

	"timeline-cache/core/model"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/feature/timeline"
)

// Service is the subset of the Mastodon API the sources need. The network
// layer implements it; the cache never talks to the network itself.
type Service interface {
	HomeTimeline(ctx context.Context, q mastodon.PageQuery) ([]mastodon.Status, error)
	ListTimeline(ctx context.Context, listID string, q mastodon.PageQuery) ([]mastodon.Status, error)
	AccountStatuses(ctx context.Context, accountID string, q mastodon.PageQuery) ([]mastodon.Status, error)
	Notifications(ctx context.Context, types []string, q mastodon.PageQuery) ([]mastodon.Notification, error)
	Status(ctx context.Context, id string) (*mastodon.Status, error)
	StatusContext(ctx context.Context, id string) (*mastodon.Context, error)
}

// pageQuery translates the cached cursors into Mastodon id paging.
func pageQuery(req timeline.Request, sinceOnRefresh bool) (mastodon.PageQuery, error) {
	q := mastodon.PageQuery{Limit: req.PageSize}
	switch req.Direction {
	case timeline.Refresh:
		if sinceOnRefresh {
			id, err := nativeID(req.FirstStatus)
			if err != nil {
				return q, err
			}
			q.SinceID = id
		}
	case timeline.Prepend:
		id, err := nativeID(req.FirstStatus)
		if err != nil {
			return q, err
		}
		q.MinID = id
	case timeline.Append:
		id, err := nativeID(req.LastStatus)
		if err != nil {
			return q, err
		}
		q.MaxID = id
	}
	return q, nil
}

type statusSource struct {
	bucket model.BucketRef
	mode   timeline.RefreshMode
	fetch  func(ctx context.Context, q mastodon.PageQuery) ([]mastodon.Status, error)
}

func (s *statusSource) Bucket() model.BucketRef           { return s.bucket }
func (s *statusSource) RefreshMode() timeline.RefreshMode { return s.mode }

func (s *statusSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	q, err := pageQuery(req, s.mode == timeline.RefreshMerge)
	if err != nil {
		return nil, err
	}
	statuses, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	batch, errs := MapStatuses(s.bucket.Account, s.bucket.Name, statuses)
	return &timeline.Response{Batch: batch, Errors: errs}, nil
}

// NewHomeSource pages the home timeline. Refresh merges the statuses newer
// than the newest cached one.
func NewHomeSource(svc Service, account model.MicroBlogKey) timeline.Source {
	return &statusSource{
		bucket: model.BucketRef{Account: account, Name: model.BucketHome},
		mode:   timeline.RefreshMerge,
		fetch:  svc.HomeTimeline,
	}
}

// NewListSource pages a list timeline.
func NewListSource(svc Service, account model.MicroBlogKey, listID string) timeline.Source {
	return &statusSource{
		bucket: model.BucketRef{Account: account, Name: model.ListBucket(listID)},
		mode:   timeline.RefreshMerge,
		fetch: func(ctx context.Context, q mastodon.PageQuery) ([]mastodon.Status, error) {
			return svc.ListTimeline(ctx, listID, q)
		},
	}
}

// NewUserSource pages the statuses of user, whose key id is the account id
// on the viewing instance.
func NewUserSource(svc Service, account, user model.MicroBlogKey) timeline.Source {
	return &statusSource{
		bucket: model.BucketRef{Account: account, Name: model.UserBucket(user)},
		mode:   timeline.RefreshReplace,
		fetch: func(ctx context.Context, q mastodon.PageQuery) ([]mastodon.Status, error) {
			return svc.AccountStatuses(ctx, user.ID, q)
		},
	}
}

// NotificationSource pages notifications of the given types. An empty type
// list means all of them.
type NotificationSource struct {
	svc    Service
	bucket model.BucketRef
	types  []string
}

// NewNotificationSource creates a source for the notification bucket kind.
// The "mentions" kind only loads mentions.
func NewNotificationSource(svc Service, account model.MicroBlogKey, kind string) *NotificationSource {
	var types []string
	if kind == "mentions" {
		types = []string{mastodon.NotificationMention}
	}
	return &NotificationSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.NotificationBucket(kind)},
		types:  types,
	}
}

func (s *NotificationSource) Bucket() model.BucketRef           { return s.bucket }
func (s *NotificationSource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }

func (s *NotificationSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	q, err := pageQuery(req, false)
	if err != nil {
		return nil, err
	}
	items, err := s.svc.Notifications(ctx, s.types, q)
	if err != nil {
		return nil, err
	}
	batch, errs := MapNotifications(s.bucket.Account, s.bucket.Name, items)
	return &timeline.Response{Batch: batch, Errors: errs}, nil
}

// ContextSource loads the conversation around one status. It has a single
// page, so Prepend and Append always end the stream.
type ContextSource struct {
	svc    Service
	bucket model.BucketRef
	status model.MicroBlogKey
}

// NewContextSource creates the source of the status_<key> bucket.
func NewContextSource(svc Service, account, status model.MicroBlogKey) *ContextSource {
	return &ContextSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.StatusBucket(status)},
		status: status,
	}
}

func (s *ContextSource) Bucket() model.BucketRef           { return s.bucket }
func (s *ContextSource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }
func (s *ContextSource) Seed() model.MicroBlogKey          { return s.status }

func (s *ContextSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	if req.Direction != timeline.Refresh {
		return timeline.EndOfStream(), nil
	}
	focal, err := s.svc.Status(ctx, s.status.ID)
	if err != nil {
		return nil, err
	}
	if focal == nil {
		return nil, fmt.Errorf("status %s not found", s.status)
	}
	c, err := s.svc.StatusContext(ctx, s.status.ID)
	if err != nil {
		return nil, err
	}
	batch, errs := MapContext(s.bucket.Account, s.bucket.Name, *focal, *c)
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: true}, nil
}

// StatusOnlySource loads a single status without its conversation.
type StatusOnlySource struct {
	svc    Service
	bucket model.BucketRef
	status model.MicroBlogKey
}

// NewStatusOnlySource creates the source of the status_only_<key> bucket.
func NewStatusOnlySource(svc Service, account, status model.MicroBlogKey) *StatusOnlySource {
	return &StatusOnlySource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.StatusOnlyBucket(status)},
		status: status,
	}
}

func (s *StatusOnlySource) Bucket() model.BucketRef           { return s.bucket }
func (s *StatusOnlySource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }
func (s *StatusOnlySource) Seed() model.MicroBlogKey          { return s.status }

func (s *StatusOnlySource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	if req.Direction != timeline.Refresh {
		return timeline.EndOfStream(), nil
	}
	st, err := s.svc.Status(ctx, s.status.ID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("status %s not found", s.status)
	}
	batch, errs := MapStatuses(s.bucket.Account, s.bucket.Name, []mastodon.Status{*st})
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: true}, nil
}
