package model

import (
	"fmt"
	"net/url"
	"strings"
)

// PlatformType identifies the social platform a record was fetched from.
type PlatformType string

const (
	PlatformMastodon PlatformType = "mastodon"
	PlatformMisskey  PlatformType = "misskey"
	PlatformBluesky  PlatformType = "bluesky"
	PlatformRSS      PlatformType = "rss"
	PlatformXQT      PlatformType = "xqt"
)

// IsValid reports whether p is a known platform.
func (p PlatformType) IsValid() bool {
	switch p {
	case PlatformMastodon, PlatformMisskey, PlatformBluesky, PlatformRSS, PlatformXQT:
		return true
	default:
		return false
	}
}

// MicroBlogKey is the composite identity of a status, user or account:
// a platform native id qualified by the host it is valid on.
type MicroBlogKey struct {
	ID   string `json:"id"`
	Host string `json:"host"`
}

// NewKey builds a key, lower-casing the host.
func NewKey(id, host string) MicroBlogKey {
	return MicroBlogKey{ID: id, Host: strings.ToLower(host)}
}

// String returns the canonical "id@host" form used as storage key.
func (k MicroBlogKey) String() string {
	return k.ID + "@" + k.Host
}

// IsZero reports whether the key is unset.
func (k MicroBlogKey) IsZero() bool {
	return k.ID == "" && k.Host == ""
}

// ParseKey parses the canonical "id@host" form. The id may itself contain '@',
// so the host is taken after the last one.
func ParseKey(s string) (MicroBlogKey, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return MicroBlogKey{}, fmt.Errorf("invalid key %q: want id@host", s)
	}
	return MicroBlogKey{ID: s[:i], Host: s[i+1:]}, nil
}

// ReblogKey returns the key of a synthetic boost wrapper: the same underlying
// post boosted by two users yields two distinct wrapper keys.
func ReblogKey(underlying MicroBlogKey, booster MicroBlogKey) MicroBlogKey {
	return MicroBlogKey{
		ID:   underlying.ID + "_reblog_" + booster.String(),
		Host: underlying.Host,
	}
}

// NotificationKey returns the key of a synthetic notification status for
// platforms whose notification ids live in their own namespace.
func NotificationKey(id, host string) MicroBlogKey {
	return NewKey("notification_"+id, host)
}

// ResolveHost extracts the host an account identifier belongs to.
//
// Accepted forms are "user@host", "@user@host", "acct:user@host" and absolute
// URLs. A bare local name ("user") resolves to fallback, which is normally the
// host of the instance the data was fetched from.
func ResolveHost(identifier, fallback string) (string, error) {
	id := strings.TrimSpace(identifier)
	id = strings.TrimPrefix(id, "acct:")

	var host string
	switch {
	case strings.Contains(id, "://"):
		u, err := url.Parse(id)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", identifier, err)
		}
		host = u.Hostname()
		if host == "" {
			return "", fmt.Errorf("no host in %q", identifier)
		}
	case strings.Contains(strings.TrimPrefix(id, "@"), "@"):
		trimmed := strings.TrimPrefix(id, "@")
		host = trimmed[strings.LastIndex(trimmed, "@")+1:]
		if host == "" {
			return "", fmt.Errorf("empty host in %q", identifier)
		}
	default:
		host = fallback
	}

	host = strings.ToLower(host)
	if host == "" || strings.ContainsAny(host, " /@") {
		return "", fmt.Errorf("cannot resolve host for %q", identifier)
	}
	return host, nil
}
