package mastodon

import (
	"timeline-cache/core/model"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/core/reconcile"
)

const platform = model.PlatformMastodon

func statusTime(_ int, s mastodon.Status) int64 {
	return reconcile.MillisOf(s.CreatedAt)
}

func notificationTime(_ int, n mastodon.Notification) int64 {
	return reconcile.MillisOf(n.CreatedAt)
}

// MapUser maps an account. Mastodon ids are only valid on the instance that
// served them, so the key is qualified by the viewing account's host while
// Host and Handle name the instance the user lives on.
func MapUser(account model.MicroBlogKey, a mastodon.Account) (model.UserRecord, error) {
	return mapUser(account, a, nil)
}

// MapProfile maps an account fetched from its profile endpoint together with
// the viewer's relationship to it.
func MapProfile(account model.MicroBlogKey, a mastodon.Account, rel *mastodon.Relationship) (model.UserRecord, error) {
	return mapUser(account, a, rel)
}

func mapUser(account model.MicroBlogKey, a mastodon.Account, rel *mastodon.Relationship) (model.UserRecord, error) {
	if err := model.Validate(platform, a.ID, a); err != nil {
		return model.UserRecord{}, err
	}
	host, err := model.ResolveHost(a.Acct, account.Host)
	if err != nil {
		return model.UserRecord{}, &model.MappingError{Platform: platform, ItemID: a.ID, Field: "acct", Err: err}
	}
	name := a.DisplayName
	if name == "" {
		name = a.Username
	}
	acc := a
	return model.UserRecord{
		UserKey:   model.NewKey(a.ID, account.Host),
		Platform:  platform,
		Name:      name,
		Handle:    a.Username + "@" + host,
		Host:      host,
		AvatarURL: a.Avatar,
		Content:   model.MastodonUser{Account: &acc, Relationship: rel},
	}, nil
}

// MapStatuses maps a page of statuses into bucket. Boosts become wrapper
// statuses owned by the booster with a retweet edge to the boosted status.
func MapStatuses(account model.MicroBlogKey, bucket string, statuses []mastodon.Status, opts ...reconcile.Option[mastodon.Status]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(statusTime, opts)
	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, st := range statuses {
		part, key, err := mapStatus(account, st)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, st))
	}
	return batch, errs
}

func mapStatus(account model.MicroBlogKey, st mastodon.Status) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, st.ID, st); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	author, err := MapUser(account, *st.Account)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}

	if st.Reblog != nil {
		inner, innerKey, err := mapStatus(account, *st.Reblog)
		if err != nil {
			return batch, model.MicroBlogKey{}, err
		}
		key := model.ReblogKey(innerKey, author.UserKey)
		wrapper := st
		wrapper.Reblog = nil
		batch.Append(inner)
		batch.Users = append(batch.Users, author)
		batch.Statuses = append(batch.Statuses, model.StatusRecord{
			StatusKey:  key,
			AccountKey: account,
			Platform:   platform,
			UserKey:    &author.UserKey,
			Content:    model.MastodonStatus{Status: &wrapper},
			CreatedAt:  st.CreatedAt,
		})
		batch.References = append(batch.References, model.StatusReference{
			Type:                model.ReferenceRetweet,
			StatusKey:           key,
			ReferencedStatusKey: innerKey,
		})
		return batch, key, nil
	}

	key := model.NewKey(st.ID, account.Host)
	content := st
	batch.Users = append(batch.Users, author)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: account,
		Platform:   platform,
		UserKey:    &author.UserKey,
		Content:    model.MastodonStatus{Status: &content},
		CreatedAt:  st.CreatedAt,
	})
	return batch, key, nil
}

// MapNotifications maps a page of notifications. Each one becomes a
// synthetic status owned by the actor, linked to the status it is about.
func MapNotifications(account model.MicroBlogKey, bucket string, items []mastodon.Notification, opts ...reconcile.Option[mastodon.Notification]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(notificationTime, opts)
	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, n := range items {
		part, key, err := mapNotification(account, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, n))
	}
	return batch, errs
}

func mapNotification(account model.MicroBlogKey, n mastodon.Notification) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, n.ID, n); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	actor, err := MapUser(account, *n.Account)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	key := model.NotificationKey(n.ID, account.Host)

	if n.Status != nil {
		inner, innerKey, err := mapStatus(account, *n.Status)
		if err != nil {
			return batch, model.MicroBlogKey{}, err
		}
		batch.Append(inner)
		batch.References = append(batch.References, model.StatusReference{
			Type:                model.ReferenceMastodonNotification,
			StatusKey:           key,
			ReferencedStatusKey: innerKey,
		})
	}

	content := n
	content.Status = nil
	batch.Users = append(batch.Users, actor)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: account,
		Platform:   platform,
		UserKey:    &actor.UserKey,
		Content:    model.MastodonNotification{Notification: &content},
		CreatedAt:  n.CreatedAt,
	})
	return batch, key, nil
}

// MapContext maps the conversation around focal into a thread bucket:
// ancestors oldest first, the focal status, then descendants.
func MapContext(account model.MicroBlogKey, bucket string, focal mastodon.Status, c mastodon.Context) (reconcile.Batch, []error) {
	thread := make([]mastodon.Status, 0, len(c.Ancestors)+1+len(c.Descendants))
	thread = append(thread, c.Ancestors...)
	thread = append(thread, focal)
	thread = append(thread, c.Descendants...)
	return MapStatuses(account, bucket, thread, reconcile.WithSortID[mastodon.Status](reconcile.ThreadPosition[mastodon.Status]))
}

// nativeID recovers the id the Mastodon API pages by from a cached status.
func nativeID(rec *model.StatusRecord) (string, error) {
	if rec == nil {
		return "", nil
	}
	switch c := rec.Content.(type) {
	case model.MastodonStatus:
		if c.Status != nil {
			return c.Status.ID, nil
		}
	case model.MastodonNotification:
		if c.Notification != nil {
			return c.Notification.ID, nil
		}
	}
	return "", &model.MappingError{Platform: platform, ItemID: rec.StatusKey.String(), Field: "content", Err: model.ErrMissingField}
}
