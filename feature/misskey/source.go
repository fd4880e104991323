package misskey

import (
	"context"
	"fmt"
	"slices"

	"timeline-cache/core/model"
	"timeline-cache/core/platform/misskey"
	"timeline-cache/core/reconcile"
	"timeline-cache/feature/timeline"
)

// Service is the subset of the Misskey API the sources need.
type Service interface {
	// Emojis returns the custom emoji table of the instance, keyed by name.
	Emojis(ctx context.Context) (map[string]string, error)
	HomeTimeline(ctx context.Context, q misskey.PageQuery) ([]misskey.Note, error)
	ListTimeline(ctx context.Context, listID string, q misskey.PageQuery) ([]misskey.Note, error)
	UserNotes(ctx context.Context, userID string, q misskey.PageQuery) ([]misskey.Note, error)
	Notifications(ctx context.Context, types []string, q misskey.PageQuery) ([]misskey.Notification, error)
	Note(ctx context.Context, id string) (*misskey.Note, error)
	// Conversation returns the ancestors of a note, nearest parent first.
	Conversation(ctx context.Context, id string) ([]misskey.Note, error)
	Children(ctx context.Context, id string) ([]misskey.Note, error)
}

func pageQuery(req timeline.Request, sinceOnRefresh bool) (misskey.PageQuery, error) {
	q := misskey.PageQuery{Limit: req.PageSize}
	var err error
	switch req.Direction {
	case timeline.Refresh:
		if sinceOnRefresh {
			q.SinceID, err = nativeID(req.FirstStatus)
		}
	case timeline.Prepend:
		q.SinceID, err = nativeID(req.FirstStatus)
	case timeline.Append:
		q.UntilID, err = nativeID(req.LastStatus)
	}
	return q, err
}

type noteSource struct {
	svc    Service
	bucket model.BucketRef
	mode   timeline.RefreshMode
	fetch  func(ctx context.Context, q misskey.PageQuery) ([]misskey.Note, error)
}

func (s *noteSource) Bucket() model.BucketRef           { return s.bucket }
func (s *noteSource) RefreshMode() timeline.RefreshMode { return s.mode }

func (s *noteSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	q, err := pageQuery(req, s.mode == timeline.RefreshMerge)
	if err != nil {
		return nil, err
	}
	emojis, err := s.svc.Emojis(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	batch, errs := MapNotes(s.bucket.Account, s.bucket.Name, notes, reconcile.WithEmojis[misskey.Note](emojis))
	return &timeline.Response{Batch: batch, Errors: errs}, nil
}

// NewHomeSource pages the home timeline, merging on refresh.
func NewHomeSource(svc Service, account model.MicroBlogKey) timeline.Source {
	return &noteSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.BucketHome},
		mode:   timeline.RefreshMerge,
		fetch:  svc.HomeTimeline,
	}
}

// NewListSource pages a user list timeline.
func NewListSource(svc Service, account model.MicroBlogKey, listID string) timeline.Source {
	return &noteSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.ListBucket(listID)},
		mode:   timeline.RefreshMerge,
		fetch: func(ctx context.Context, q misskey.PageQuery) ([]misskey.Note, error) {
			return svc.ListTimeline(ctx, listID, q)
		},
	}
}

// NewUserSource pages the notes of user.
func NewUserSource(svc Service, account, user model.MicroBlogKey) timeline.Source {
	return &noteSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.UserBucket(user)},
		mode:   timeline.RefreshReplace,
		fetch: func(ctx context.Context, q misskey.PageQuery) ([]misskey.Note, error) {
			return svc.UserNotes(ctx, user.ID, q)
		},
	}
}

// NotificationSource pages notifications. The "mentions" kind loads mentions
// and replies only.
type NotificationSource struct {
	svc    Service
	bucket model.BucketRef
	types  []string
}

func NewNotificationSource(svc Service, account model.MicroBlogKey, kind string) *NotificationSource {
	var types []string
	if kind == "mentions" {
		types = []string{misskey.NotificationMention, misskey.NotificationReply}
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
	emojis, err := s.svc.Emojis(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.svc.Notifications(ctx, s.types, q)
	if err != nil {
		return nil, err
	}
	batch, errs := MapNotifications(s.bucket.Account, s.bucket.Name, items, reconcile.WithEmojis[misskey.Notification](emojis))
	return &timeline.Response{Batch: batch, Errors: errs}, nil
}

// ThreadSource loads a note with its ancestors and direct children.
type ThreadSource struct {
	svc    Service
	bucket model.BucketRef
	note   model.MicroBlogKey
}

func NewThreadSource(svc Service, account, note model.MicroBlogKey) *ThreadSource {
	return &ThreadSource{
		svc:    svc,
		bucket: model.BucketRef{Account: account, Name: model.StatusBucket(note)},
		note:   note,
	}
}

func (s *ThreadSource) Bucket() model.BucketRef           { return s.bucket }
func (s *ThreadSource) RefreshMode() timeline.RefreshMode { return timeline.RefreshReplace }
func (s *ThreadSource) Seed() model.MicroBlogKey          { return s.note }

func (s *ThreadSource) Load(ctx context.Context, req timeline.Request) (*timeline.Response, error) {
	if req.Direction != timeline.Refresh {
		return timeline.EndOfStream(), nil
	}
	emojis, err := s.svc.Emojis(ctx)
	if err != nil {
		return nil, err
	}
	focal, err := s.svc.Note(ctx, s.note.ID)
	if err != nil {
		return nil, err
	}
	if focal == nil {
		return nil, fmt.Errorf("note %s not found", s.note)
	}
	ancestors, err := s.svc.Conversation(ctx, s.note.ID)
	if err != nil {
		return nil, err
	}
	children, err := s.svc.Children(ctx, s.note.ID)
	if err != nil {
		return nil, err
	}
	ancestors = slices.Clone(ancestors)
	slices.Reverse(ancestors)
	batch, errs := MapThread(s.bucket.Account, s.bucket.Name, ancestors, *focal, children, reconcile.WithEmojis[misskey.Note](emojis))
	return &timeline.Response{Batch: batch, Errors: errs, EndOfStream: true}, nil
}
