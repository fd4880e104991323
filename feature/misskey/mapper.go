package misskey

import (
	"timeline-cache/core/model"
	"timeline-cache/core/platform/misskey"
	"timeline-cache/core/reconcile"
)

const platform = model.PlatformMisskey

// maxNoteDepth bounds how far embedded replies and renotes are followed.
const maxNoteDepth = 4

func noteTime(_ int, n misskey.Note) int64 {
	return reconcile.MillisOf(n.CreatedAt)
}

func notificationTime(_ int, n misskey.Notification) int64 {
	return reconcile.MillisOf(n.CreatedAt)
}

func userHost(account model.MicroBlogKey, u misskey.UserLite) (string, error) {
	identifier := u.Username
	if u.Host != nil && *u.Host != "" {
		identifier += "@" + *u.Host
	}
	host, err := model.ResolveHost(identifier, account.Host)
	if err != nil {
		return "", &model.MappingError{Platform: platform, ItemID: u.ID, Field: "host", Err: err}
	}
	return host, nil
}

func userRecord(account model.MicroBlogKey, u misskey.UserLite, content model.UserContent) (model.UserRecord, error) {
	if err := model.Validate(platform, u.ID, u); err != nil {
		return model.UserRecord{}, err
	}
	host, err := userHost(account, u)
	if err != nil {
		return model.UserRecord{}, err
	}
	name := u.Username
	if u.Name != nil && *u.Name != "" {
		name = *u.Name
	}
	return model.UserRecord{
		UserKey:   model.NewKey(u.ID, account.Host),
		Platform:  platform,
		Name:      name,
		Handle:    u.Username + "@" + host,
		Host:      host,
		AvatarURL: u.AvatarURL,
		Content:   content,
	}, nil
}

// MapUserLite maps the compact user embedded in notes.
func MapUserLite(account model.MicroBlogKey, u misskey.UserLite, emojis map[string]string) (model.UserRecord, error) {
	lite := u
	return userRecord(account, u, model.MisskeyUserLite{User: &lite, Emojis: emojis})
}

// MapUser maps a detailed profile.
func MapUser(account model.MicroBlogKey, u misskey.UserDetailed, emojis map[string]string) (model.UserRecord, error) {
	full := u
	return userRecord(account, u.UserLite, model.MisskeyUser{User: &full, Emojis: emojis})
}

type mapper struct {
	account model.MicroBlogKey
	emojis  map[string]string
}

// note maps n and, recursively, the reply and renote it embeds. Embedded
// notes are stored but get no bucket entry of their own.
func (m mapper) note(n misskey.Note, depth int) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, n.ID, n); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	author, err := MapUserLite(m.account, *n.User, m.emojis)
	if err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	key := model.NewKey(n.ID, m.account.Host)

	link := func(t model.ReferenceType, target *misskey.Note) error {
		if target == nil || depth >= maxNoteDepth {
			return nil
		}
		inner, innerKey, err := m.note(*target, depth+1)
		if err != nil {
			return err
		}
		batch.Append(inner)
		batch.References = append(batch.References, model.StatusReference{
			Type:                t,
			StatusKey:           key,
			ReferencedStatusKey: innerKey,
		})
		return nil
	}
	if err := link(model.ReferenceReply, n.Reply); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	if err := link(model.ReferenceRetweet, n.Renote); err != nil {
		return batch, model.MicroBlogKey{}, err
	}

	content := n
	content.Reply = nil
	content.Renote = nil
	batch.Users = append(batch.Users, author)
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: m.account,
		Platform:   platform,
		UserKey:    &author.UserKey,
		Content:    model.MisskeyStatus{Note: &content, Emojis: m.emojis},
		CreatedAt:  n.CreatedAt,
	})
	return batch, key, nil
}

// MapNotes maps a page of notes into bucket. Renotes are notes of their own
// with a retweet edge to the renoted note; replies get a reply edge.
func MapNotes(account model.MicroBlogKey, bucket string, notes []misskey.Note, opts ...reconcile.Option[misskey.Note]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(noteTime, opts)
	m := mapper{account: account, emojis: o.Emojis}
	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, n := range notes {
		part, key, err := m.note(n, 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, n))
	}
	return batch, errs
}

// MapNotifications maps a page of notifications. System notifications have
// no user and produce a status without owner.
func MapNotifications(account model.MicroBlogKey, bucket string, items []misskey.Notification, opts ...reconcile.Option[misskey.Notification]) (reconcile.Batch, []error) {
	o := reconcile.BuildOptions(notificationTime, opts)
	m := mapper{account: account, emojis: o.Emojis}
	var (
		batch reconcile.Batch
		errs  []error
	)
	for i, n := range items {
		part, key, err := m.notification(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Append(part)
		batch.AddEntry(account, bucket, key, o.SortID(i, n))
	}
	return batch, errs
}

func (m mapper) notification(n misskey.Notification) (reconcile.Batch, model.MicroBlogKey, error) {
	var batch reconcile.Batch
	if err := model.Validate(platform, n.ID, n); err != nil {
		return batch, model.MicroBlogKey{}, err
	}
	key := model.NotificationKey(n.ID, m.account.Host)

	var owner *model.MicroBlogKey
	if n.User != nil {
		user, err := MapUserLite(m.account, *n.User, m.emojis)
		if err != nil {
			return batch, model.MicroBlogKey{}, err
		}
		batch.Users = append(batch.Users, user)
		owner = &user.UserKey
	}

	if n.Note != nil {
		inner, innerKey, err := m.note(*n.Note, 0)
		if err != nil {
			return batch, model.MicroBlogKey{}, err
		}
		batch.Append(inner)
		batch.References = append(batch.References, model.StatusReference{
			Type:                model.ReferenceMisskeyNotification,
			StatusKey:           key,
			ReferencedStatusKey: innerKey,
		})
	}

	content := n
	content.Note = nil
	batch.Statuses = append(batch.Statuses, model.StatusRecord{
		StatusKey:  key,
		AccountKey: m.account,
		Platform:   platform,
		UserKey:    owner,
		Content:    model.MisskeyNotification{Notification: &content, Emojis: m.emojis},
		CreatedAt:  n.CreatedAt,
	})
	return batch, key, nil
}

// MapThread maps a conversation into a thread bucket. ancestors are ordered
// from the root down to the direct parent of focal.
func MapThread(account model.MicroBlogKey, bucket string, ancestors []misskey.Note, focal misskey.Note, children []misskey.Note, opts ...reconcile.Option[misskey.Note]) (reconcile.Batch, []error) {
	thread := make([]misskey.Note, 0, len(ancestors)+1+len(children))
	thread = append(thread, ancestors...)
	thread = append(thread, focal)
	thread = append(thread, children...)
	opts = append(opts, reconcile.WithSortID[misskey.Note](reconcile.ThreadPosition[misskey.Note]))
	return MapNotes(account, bucket, thread, opts...)
}

func nativeID(rec *model.StatusRecord) (string, error) {
	if rec == nil {
		return "", nil
	}
	switch c := rec.Content.(type) {
	case model.MisskeyStatus:
		if c.Note != nil {
			return c.Note.ID, nil
		}
	case model.MisskeyNotification:
		if c.Notification != nil {
			return c.Notification.ID, nil
		}
	}
	return "", &model.MappingError{Platform: platform, ItemID: rec.StatusKey.String(), Field: "content", Err: model.ErrMissingField}
}
