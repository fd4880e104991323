package reconcile

import (
	"timeline-cache/core/model"
)

// userLookup is the part of cache.Tx that user reconciliation reads.
type userLookup interface {
	FindUsers(keys []model.MicroBlogKey) ([]model.UserRecord, error)
}

// reconcileUsers decides what to write for every incoming user key.
//
// For each key, in order of first appearance:
//   - the last full record of the batch wins;
//   - otherwise, if a full record is stored, a copy of it patched with the
//     display fields of the last lite record wins;
//   - otherwise the last lite record wins.
//
// A stored full profile is therefore never replaced by a lite one.
func reconcileUsers(tx userLookup, incoming []model.UserRecord) ([]model.UserRecord, int, error) {
	if len(incoming) == 0 {
		return nil, 0, nil
	}

	type group struct {
		lastFull *model.UserRecord
		lastLite *model.UserRecord
	}
	groups := make(map[model.MicroBlogKey]*group)
	var order []model.MicroBlogKey
	for i := range incoming {
		u := incoming[i]
		g, ok := groups[u.UserKey]
		if !ok {
			g = &group{}
			groups[u.UserKey] = g
			order = append(order, u.UserKey)
		}
		if u.IsFull() {
			g.lastFull = &u
		} else {
			g.lastLite = &u
		}
	}

	var liteOnly []model.MicroBlogKey
	for _, k := range order {
		if groups[k].lastFull == nil {
			liteOnly = append(liteOnly, k)
		}
	}
	existing := make(map[model.MicroBlogKey]model.UserRecord)
	if len(liteOnly) > 0 {
		found, err := tx.FindUsers(liteOnly)
		if err != nil {
			return nil, 0, err
		}
		for _, u := range found {
			existing[u.UserKey] = u
		}
	}

	out := make([]model.UserRecord, 0, len(order))
	patched := 0
	for _, k := range order {
		g := groups[k]
		switch {
		case g.lastFull != nil:
			out = append(out, *g.lastFull)
		default:
			stored, ok := existing[k]
			if ok && stored.IsFull() {
				if p, ok := patchUser(stored, *g.lastLite); ok {
					out = append(out, p)
					patched++
					continue
				}
				// Unknown pairing: keep the stored profile untouched.
				continue
			}
			out = append(out, *g.lastLite)
		}
	}
	return out, patched, nil
}

// patchUser copies the display fields of a lite record into a copy of a
// stored full record. It reports false when the variants do not pair up.
func patchUser(full, lite model.UserRecord) (model.UserRecord, bool) {
	out := full
	out.Name = lite.Name
	if lite.AvatarURL != "" {
		out.AvatarURL = lite.AvatarURL
	}
	if lite.Handle != "" {
		out.Handle = lite.Handle
	}

	switch stored := full.Content.(type) {
	case model.MisskeyUser:
		l, ok := lite.Content.(model.MisskeyUserLite)
		if !ok || stored.User == nil || l.User == nil {
			return full, false
		}
		detail := *stored.User
		detail.Name = l.User.Name
		detail.AvatarURL = l.User.AvatarURL
		detail.AvatarBlurhash = l.User.AvatarBlurhash
		detail.OnlineStatus = l.User.OnlineStatus
		if l.User.Emojis != nil {
			detail.Emojis = l.User.Emojis
		}
		emojis := stored.Emojis
		if l.Emojis != nil {
			emojis = l.Emojis
		}
		out.Content = model.MisskeyUser{User: &detail, Emojis: emojis}
		return out, true

	case model.BlueskyUser:
		l, ok := lite.Content.(model.BlueskyUserLite)
		if !ok || stored.Profile == nil || l.Profile == nil {
			return full, false
		}
		profile := *stored.Profile
		profile.Handle = l.Profile.Handle
		profile.DisplayName = l.Profile.DisplayName
		profile.Avatar = l.Profile.Avatar
		if l.Profile.Viewer != nil {
			profile.Viewer = l.Profile.Viewer
		}
		if l.Profile.Labels != nil {
			profile.Labels = l.Profile.Labels
		}
		out.Content = model.BlueskyUser{Profile: &profile}
		return out, true

	case model.MastodonUser, model.RSSFeedUser:
		// These platforms never deliver lite profiles.
		return full, false

	default:
		return full, false
	}
}
