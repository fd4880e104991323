package model

import (
	"encoding/json"
	"fmt"

	"github.com/mmcdole/gofeed"

	"timeline-cache/core/platform/bluesky"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/core/platform/misskey"
)

// ContentKind discriminates the payload stored next to a status or user row.
type ContentKind string

const (
	KindMastodonStatus       ContentKind = "mastodon_status"
	KindMastodonNotification ContentKind = "mastodon_notification"
	KindMisskeyStatus        ContentKind = "misskey_status"
	KindMisskeyNotification  ContentKind = "misskey_notification"
	KindBlueskyStatus        ContentKind = "bluesky_status"
	KindBlueskyNotification  ContentKind = "bluesky_notification"
	KindBlueskyReason        ContentKind = "bluesky_reason"
	KindRSSItem              ContentKind = "rss_item"

	KindMastodonUser    ContentKind = "mastodon_user"
	KindMisskeyUserLite ContentKind = "misskey_user_lite"
	KindMisskeyUser     ContentKind = "misskey_user"
	KindBlueskyUserLite ContentKind = "bluesky_user_lite"
	KindBlueskyUser     ContentKind = "bluesky_user"
	KindRSSFeedUser     ContentKind = "rss_feed_user"
)

// StatusContent is the platform payload of a status. The set of variants is
// closed; consumers switch over the concrete types.
type StatusContent interface {
	Kind() ContentKind
	statusContent()
}

// MastodonStatus is a Mastodon status or reblog wrapper.
type MastodonStatus struct {
	Status *mastodon.Status `json:"status"`
}

// MastodonNotification is a synthetic status carrying a Mastodon notification.
// The wrapped status is stored separately and linked by reference.
type MastodonNotification struct {
	Notification *mastodon.Notification `json:"notification"`
}

// MisskeyStatus is a note together with the instance emoji table.
type MisskeyStatus struct {
	Note   *misskey.Note     `json:"note"`
	Emojis map[string]string `json:"emojis,omitempty"`
}

// MisskeyNotification is a synthetic status carrying a Misskey notification.
type MisskeyNotification struct {
	Notification *misskey.Notification `json:"notification"`
	Emojis       map[string]string     `json:"emojis,omitempty"`
}

// BlueskyStatus is a hydrated post.
type BlueskyStatus struct {
	Post *bluesky.PostView `json:"post"`
}

// Quoted returns the embedded quote of the post, if any. Quotes are inlined
// into the post payload and never stored as references.
func (b BlueskyStatus) Quoted() *bluesky.EmbedRecord {
	if b.Post == nil || b.Post.Embed == nil {
		return nil
	}
	return b.Post.Embed.Record
}

// BlueskyNotification is a notification stored under its record URI.
type BlueskyNotification struct {
	Notification *bluesky.Notification `json:"notification"`
}

// BlueskyReason is the wrapper a repost places in a feed.
type BlueskyReason struct {
	Reason  *bluesky.ReasonRepost `json:"reason"`
	PostURI string                `json:"post_uri"`
}

// RSSItem is one feed entry.
type RSSItem struct {
	Item      *gofeed.Item `json:"item"`
	FeedTitle string       `json:"feed_title"`
	FeedURL   string       `json:"feed_url"`
}

func (MastodonStatus) Kind() ContentKind       { return KindMastodonStatus }
func (MastodonNotification) Kind() ContentKind { return KindMastodonNotification }
func (MisskeyStatus) Kind() ContentKind        { return KindMisskeyStatus }
func (MisskeyNotification) Kind() ContentKind  { return KindMisskeyNotification }
func (BlueskyStatus) Kind() ContentKind        { return KindBlueskyStatus }
func (BlueskyNotification) Kind() ContentKind  { return KindBlueskyNotification }
func (BlueskyReason) Kind() ContentKind        { return KindBlueskyReason }
func (RSSItem) Kind() ContentKind              { return KindRSSItem }

func (MastodonStatus) statusContent()       {}
func (MastodonNotification) statusContent() {}
func (MisskeyStatus) statusContent()        {}
func (MisskeyNotification) statusContent()  {}
func (BlueskyStatus) statusContent()        {}
func (BlueskyNotification) statusContent()  {}
func (BlueskyReason) statusContent()        {}
func (RSSItem) statusContent()              {}

// UserContent is the platform payload of a user. Full reports whether the
// variant is a complete profile or the compact form embedded in posts.
type UserContent interface {
	Kind() ContentKind
	Full() bool
	userContent()
}

// MastodonUser is a Mastodon account. Mastodon always embeds full accounts;
// Relationship is only known when the profile was fetched directly.
type MastodonUser struct {
	Account      *mastodon.Account      `json:"account"`
	Relationship *mastodon.Relationship `json:"relationship,omitempty"`
}

// MisskeyUserLite is the compact user embedded in notes.
type MisskeyUserLite struct {
	User   *misskey.UserLite `json:"user"`
	Emojis map[string]string `json:"emojis,omitempty"`
}

// MisskeyUser is a detailed Misskey profile.
type MisskeyUser struct {
	User   *misskey.UserDetailed `json:"user"`
	Emojis map[string]string     `json:"emojis,omitempty"`
}

// BlueskyUserLite is the compact actor embedded in posts.
type BlueskyUserLite struct {
	Profile *bluesky.ProfileViewBasic `json:"profile"`
}

// BlueskyUser is a detailed Bluesky profile.
type BlueskyUser struct {
	Profile *bluesky.ProfileViewDetailed `json:"profile"`
}

// RSSFeedUser stands in for the author of a feed.
type RSSFeedUser struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	FeedURL     string `json:"feed_url"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

func (MastodonUser) Kind() ContentKind    { return KindMastodonUser }
func (MisskeyUserLite) Kind() ContentKind { return KindMisskeyUserLite }
func (MisskeyUser) Kind() ContentKind     { return KindMisskeyUser }
func (BlueskyUserLite) Kind() ContentKind { return KindBlueskyUserLite }
func (BlueskyUser) Kind() ContentKind     { return KindBlueskyUser }
func (RSSFeedUser) Kind() ContentKind     { return KindRSSFeedUser }

func (MastodonUser) Full() bool    { return true }
func (MisskeyUserLite) Full() bool { return false }
func (MisskeyUser) Full() bool     { return true }
func (BlueskyUserLite) Full() bool { return false }
func (BlueskyUser) Full() bool     { return true }
func (RSSFeedUser) Full() bool     { return true }

func (MastodonUser) userContent()    {}
func (MisskeyUserLite) userContent() {}
func (MisskeyUser) userContent()     {}
func (BlueskyUserLite) userContent() {}
func (BlueskyUser) userContent()     {}
func (RSSFeedUser) userContent()     {}

// DecodeStatusContent restores a status payload from its stored kind and JSON.
func DecodeStatusContent(kind ContentKind, raw []byte) (StatusContent, error) {
	var (
		content StatusContent
		err     error
	)
	switch kind {
	case KindMastodonStatus:
		var c MastodonStatus
		err = json.Unmarshal(raw, &c)
		content = c
	case KindMastodonNotification:
		var c MastodonNotification
		err = json.Unmarshal(raw, &c)
		content = c
	case KindMisskeyStatus:
		var c MisskeyStatus
		err = json.Unmarshal(raw, &c)
		content = c
	case KindMisskeyNotification:
		var c MisskeyNotification
		err = json.Unmarshal(raw, &c)
		content = c
	case KindBlueskyStatus:
		var c BlueskyStatus
		err = json.Unmarshal(raw, &c)
		content = c
	case KindBlueskyNotification:
		var c BlueskyNotification
		err = json.Unmarshal(raw, &c)
		content = c
	case KindBlueskyReason:
		var c BlueskyReason
		err = json.Unmarshal(raw, &c)
		content = c
	case KindRSSItem:
		var c RSSItem
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("unknown status content kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return content, nil
}

// DecodeUserContent restores a user payload from its stored kind and JSON.
func DecodeUserContent(kind ContentKind, raw []byte) (UserContent, error) {
	var (
		content UserContent
		err     error
	)
	switch kind {
	case KindMastodonUser:
		var c MastodonUser
		err = json.Unmarshal(raw, &c)
		content = c
	case KindMisskeyUserLite:
		var c MisskeyUserLite
		err = json.Unmarshal(raw, &c)
		content = c
	case KindMisskeyUser:
		var c MisskeyUser
		err = json.Unmarshal(raw, &c)
		content = c
	case KindBlueskyUserLite:
		var c BlueskyUserLite
		err = json.Unmarshal(raw, &c)
		content = c
	case KindBlueskyUser:
		var c BlueskyUser
		err = json.Unmarshal(raw, &c)
		content = c
	case KindRSSFeedUser:
		var c RSSFeedUser
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("unknown user content kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return content, nil
}
