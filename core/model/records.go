package model

import "time"

// StatusRecord is one status as seen by one account. The same post fetched
// by two accounts is stored twice.
type StatusRecord struct {
	StatusKey  MicroBlogKey
	AccountKey MicroBlogKey
	Platform   PlatformType
	UserKey    *MicroBlogKey
	Content    StatusContent
	CreatedAt  time.Time
}

// UserRecord is a user profile. Content is either the lite or the full variant.
type UserRecord struct {
	UserKey   MicroBlogKey
	Platform  PlatformType
	Name      string
	Handle    string
	Host      string
	AvatarURL string
	Content   UserContent
}

// IsFull reports whether the record holds a complete profile.
func (u UserRecord) IsFull() bool {
	return u.Content != nil && u.Content.Full()
}

// ReferenceType labels an edge between two statuses.
type ReferenceType string

const (
	ReferenceReply                ReferenceType = "reply"
	ReferenceRetweet              ReferenceType = "retweet"
	ReferenceQuote                ReferenceType = "quote"
	ReferenceMastodonNotification ReferenceType = "mastodon_notification"
	ReferenceMisskeyNotification  ReferenceType = "misskey_notification"
	ReferenceBlueskyNotification  ReferenceType = "bluesky_notification"
)

// StatusReference is a directed edge from StatusKey to ReferencedStatusKey.
type StatusReference struct {
	ID                  string
	Type                ReferenceType
	StatusKey           MicroBlogKey
	ReferencedStatusKey MicroBlogKey
}

// PagingBucketEntry places a status into a named, ordered view of an account.
// Readers order by SortID descending.
type PagingBucketEntry struct {
	ID         string
	AccountKey MicroBlogKey
	BucketName string
	StatusKey  MicroBlogKey
	SortID     int64
}

// JoinedStatus is a status with its author and referenced statuses resolved.
type JoinedStatus struct {
	Status     StatusRecord
	User       *UserRecord
	References []JoinedReference
}

// JoinedReference is one resolved edge of a JoinedStatus.
type JoinedReference struct {
	Type   ReferenceType
	Status *JoinedStatus
}

// Reference returns the first resolved reference of the given type.
func (j *JoinedStatus) Reference(t ReferenceType) *JoinedStatus {
	for _, ref := range j.References {
		if ref.Type == t {
			return ref.Status
		}
	}
	return nil
}
