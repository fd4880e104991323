package bluesky

import (
	"timeline-cache/core/model"
	"timeline-cache/core/platform/bluesky"
	"timeline-cache/core/reconcile"
)

const platform = model.PlatformBluesky

func feedTime(_ int, item bluesky.FeedViewPost) int64 {
	if item.Reason != nil {
		return reconcile.MillisOf(item.Reason.IndexedAt)
	}
	if item.Post != nil {
		return reconcile.MillisOf(item.Post.IndexedAt)
	}
	return 0
}

func notificationTime(_ int, n bluesky.Notification) int64 {
	return reconcile.MillisOf(n.IndexedAt)
}

func displayName(p bluesky.ProfileViewBasic) string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Handle
}

func avatar(p bluesky.ProfileViewBasic) string {
	if p.Avatar != nil {
		return *p.Avatar
	}
	return ""
}

func userRecord(account model.MicroBlogKey, p bluesky.ProfileViewBasic, content model.UserContent) (model.UserRecord, error) {
	if err := model.Validate(platform, p.DID, p); err != nil {
		return model.UserRecord{}, err
	}
	return model.UserRecord{
		UserKey:   model.NewKey(p.DID, account.Host),
		Platform:  platform,
		Name:      displayName(p),
		Handle:    p.Handle,
		Host:      account.Host,
		AvatarURL: avatar(p),
		Content:   content,
	}, nil
}

// MapUserLite maps the compact actor embedded in posts. Users are keyed by DID.
func MapUserLite(account model.MicroBlogKey, p bluesky.ProfileViewBasic) (model.UserRecord, error) {
	lite := p
	return userRecord(account, p, model.BlueskyUserLite{Profile: &lite})
}

// MapUser maps a detailed profile.
func MapUser(account model.MicroBlogKey, p bluesky.ProfileViewDetailed) (model.UserRecord, error) {
	full := p
	return userRecord(account, p.ProfileViewBasic, model.BlueskyUser{Profile: &full})
}

// post maps a hydrated post and its author. The quoted record stays inside
// the post payload.
func post(account model.MicroBlogKey, p bluesky.PostView) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, p.URI, p); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	author, err := MapUserLite(account, *p.Author)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	key := model.NewKey(p.URI, account.Host)
	content := p
	batch.Users = append(batch.Users, author)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: account,
		Platform:   platform,
		UserKey:    &author.UserKey,
		Content:    model.BlueskyStatus{Post: &content},
		CreatedAt:  p.Record.CreatedAt,
	})
	return batch, key, nil
}

func replyEdge(from, to model.MicroBlogKey) model.StatusReference {
	return model.StatusReference{Type: model.ReferenceReply, StatusKey: from, ReferencedStatusKey: to}
}

func feedItem(account model.MicroBlogKey, item bluesky.FeedViewPost) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, "", item); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	part, key, err := post(account, *item.Post)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	batch.Append(part)

	// Thread parents stay in the post record; only a repost adds an edge.
	if item.Reason == nil {
		return batch, key, nil
	}
	reposter, err := MapUserLite(account, *item.Reason.By)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	wrapperKey := model.ReblogKey(key, reposter.UserKey)
	reason := *item.Reason
	batch.Users = append(batch.Users, reposter)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  wrapperKey,
		AccountKey: account,
		Platform:   platform,
		UserKey:    &reposter.UserKey,
		Content:    model.BlueskyReason{Reason: &reason, PostURI: item.Post.URI},
		CreatedAt:  reason.IndexedAt,
	})
	batch.References = append(batch.References, model.StatusReference{
		Type:                model.ReferenceRetweet,
		StatusKey:           wrapperKey,
		ReferencedStatusKey: key,
	})
	return batch, wrapperKey, nil
}

// MapFeed maps a page of feed items. A repost becomes a wrapper owned by the
// reposter with a retweet edge to the post.
func MapFeed(account model.MicroBlogKey, bucket string, items []bluesky.FeedViewPost, opts ...reconcile.Option[bluesky.FeedViewPost]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(feedTime, opts)
	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, item := range items {
		part, key, err := feedItem(account, item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, item))
	}
	return batch, errs
}

// MapNotifications maps a notification page. Replies, mentions and quotes
// are posts themselves: when the post was supplied the entry points at it.
// Likes and reposts get a notification status linked to the subject post.
func MapNotifications(account model.MicroBlogKey, bucket string, page bluesky.NotificationPage, opts ...reconcile.Option[bluesky.Notification]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(notificationTime, opts)
	posts := make(map[string]bluesky.PostView, len(page.Posts))
	for _, p := range page.Posts {
		posts[p.URI] = p
	}

	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, n := range page.Notifications {
		part, key, err := notification(account, n, posts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, n))
	}
	return batch, errs
}

func notification(account model.MicroBlogKey, n bluesky.Notification, posts map[string]bluesky.PostView) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, n.URI, n); err != nil {
		return batch, model.MicroBlogKey{}, err
	}

	switch n.Reason {
	case bluesky.NotificationReasonReply, bluesky.NotificationReasonMention, bluesky.NotificationReasonQuote:
		if p, ok := posts[n.URI]; ok {
			return post(account, p)
		}
	}

	actor, err := MapUserLite(account, n.Author.ProfileViewBasic)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	key := model.NewKey(n.URI, account.Host)

	switch n.Reason {
	case bluesky.NotificationReasonLike, bluesky.NotificationReasonRepost:
		if n.ReasonSubject != nil {
			if p, ok := posts[*n.ReasonSubject]; ok {
				part, subjectKey, err := post(account, p)
				if err != nil {
					return batch, model.MicroBlogKey{}, err
				}
				batch.Append(part)
				batch.References = append(batch.References, model.StatusReference{
					Type:                model.ReferenceBlueskyNotification,
					StatusKey:           key,
					ReferencedStatusKey: subjectKey,
				})
			}
		}
	}

	content := n
	batch.Users = append(batch.Users, actor)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: account,
		Platform:   platform,
		UserKey:    &actor.UserKey,
		Content:    model.BlueskyNotification{Notification: &content},
		CreatedAt:  n.IndexedAt,
	})
	return batch, key, nil
}

// MapThread flattens a thread into reading order: the parents from the root
// down, the focal post, then the replies depth first. Each post gets a reply
// edge to its parent.
func MapThread(account model.MicroBlogKey, bucket string, thread bluesky.ThreadViewPost) (reconcile.Batch, []error) {
	type node struct {
		post   *bluesky.PostView
		parent *bluesky.PostView
	}
	var ancestors []node
	for p := thread.Parent; p != nil; p = p.Parent {
		var grand *bluesky.PostView
		if p.Parent != nil {
			grand = p.Parent.Post
		}
		ancestors = append(ancestors, node{post: p.Post, parent: grand})
	}
	var ordered []node
	for i := len(ancestors) - 1; i >= 0; i-- {
		ordered = append(ordered, ancestors[i])
	}
	var focalParent *bluesky.PostView
	if thread.Parent != nil {
		focalParent = thread.Parent.Post
	}
	ordered = append(ordered, node{post: thread.Post, parent: focalParent})

	var walk func(t bluesky.ThreadViewPost)
	walk = func(t bluesky.ThreadViewPost) {
		for _, r := range t.Replies {
			ordered = append(ordered, node{post: r.Post, parent: t.Post})
			walk(r)
		}
	}
	walk(thread)

	var (
		batch reconcile.Batch
		errs  []error
	)
	keys := make(map[string]model.MicroBlogKey)
	index := 0
	for _, n := range ordered {
		if n.post == nil {
			errs = append(errs, &model.MappingError{Platform: platform, Field: "post", Err: model.ErrMissingField})
			continue
		}
		part, key, err := post(account, *n.post)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		keys[n.post.URI] = key
		if n.parent != nil {
			if parentKey, ok := keys[n.parent.URI]; ok {
				batch.References = append(batch.References, replyEdge(key, parentKey))
			}
		}
		batch.AddEntry(account, bucket, key, reconcile.ThreadPosition(index, n))
		index++
	}
	return batch, errs
}

// sortTimeCursor formats the sort id of the last cached entry as the cursor
// the feed endpoints accept.
func sortTimeCursor(e *model.PagingBucketEntry) string {
	if e == nil {
		return ""
	}
	return timeOf(e.SortID)
}
