// Package mastodon holds the Mastodon API objects handed to the engine by the
// network layer. Only the fields the cache needs are declared; unknown JSON is ignored.
package mastodon

import "time"

// Emoji is a custom emoji of the instance.
type Emoji struct {
	Shortcode       string `json:"shortcode"`
	URL             string `json:"url"`
	StaticURL       string `json:"static_url"`
	VisibleInPicker bool   `json:"visible_in_picker"`
}

// Field is a profile metadata row.
type Field struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Account is a Mastodon profile.
type Account struct {
	ID             string    `json:"id" validate:"required"`
	Username       string    `json:"username"`
	Acct           string    `json:"acct" validate:"required"`
	DisplayName    string    `json:"display_name"`
	Locked         bool      `json:"locked"`
	Bot            bool      `json:"bot"`
	CreatedAt      time.Time `json:"created_at"`
	Note           string    `json:"note"`
	URL            string    `json:"url"`
	Avatar         string    `json:"avatar"`
	AvatarStatic   string    `json:"avatar_static"`
	Header         string    `json:"header"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	StatusesCount  int64     `json:"statuses_count"`
	Emojis         []Emoji   `json:"emojis"`
	Fields         []Field   `json:"fields"`
}

// Attachment is a media attachment.
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
	Blurhash    string `json:"blurhash"`
}

// Card is a link preview.
type Card struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Poll is an attached poll.
type Poll struct {
	ID         string       `json:"id"`
	ExpiresAt  *time.Time   `json:"expires_at"`
	Expired    bool         `json:"expired"`
	Multiple   bool         `json:"multiple"`
	VotesCount int64        `json:"votes_count"`
	Voted      bool         `json:"voted"`
	Options    []PollOption `json:"options"`
}

// PollOption is one choice of a poll.
type PollOption struct {
	Title      string `json:"title"`
	VotesCount int64  `json:"votes_count"`
}

// Status is a post. Reblog is set when this status is a boost of another one.
type Status struct {
	ID                 string       `json:"id" validate:"required"`
	URI                string       `json:"uri"`
	URL                string       `json:"url"`
	CreatedAt          time.Time    `json:"created_at"`
	Account            *Account     `json:"account" validate:"required"`
	Content            string       `json:"content"`
	SpoilerText        string       `json:"spoiler_text"`
	Visibility         string       `json:"visibility"`
	Sensitive          bool         `json:"sensitive"`
	Language           string       `json:"language"`
	InReplyToID        *string      `json:"in_reply_to_id"`
	InReplyToAccountID *string      `json:"in_reply_to_account_id"`
	Reblog             *Status      `json:"reblog"`
	MediaAttachments   []Attachment `json:"media_attachments"`
	Emojis             []Emoji      `json:"emojis"`
	Card               *Card        `json:"card"`
	Poll               *Poll        `json:"poll"`
	RepliesCount       int64        `json:"replies_count"`
	ReblogsCount       int64        `json:"reblogs_count"`
	FavouritesCount    int64        `json:"favourites_count"`
	Favourited         bool         `json:"favourited"`
	Reblogged          bool         `json:"reblogged"`
	Bookmarked         bool         `json:"bookmarked"`
	Pinned             bool         `json:"pinned"`
}

// Notification types delivered by the notifications endpoint.
const (
	NotificationMention       = "mention"
	NotificationStatus        = "status"
	NotificationReblog        = "reblog"
	NotificationFollow        = "follow"
	NotificationFollowRequest = "follow_request"
	NotificationFavourite     = "favourite"
	NotificationPoll          = "poll"
	NotificationUpdate        = "update"
)

// Notification wraps an event about the viewing account.
type Notification struct {
	ID        string    `json:"id" validate:"required"`
	Type      string    `json:"type" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	Account   *Account  `json:"account" validate:"required"`
	Status    *Status   `json:"status"`
}

// Context is the conversation around a status.
type Context struct {
	Ancestors   []Status `json:"ancestors"`
	Descendants []Status `json:"descendants"`
}

// Relationship is the viewer's relation to another account.
type Relationship struct {
	ID         string `json:"id"`
	Following  bool   `json:"following"`
	FollowedBy bool   `json:"followed_by"`
	Blocking   bool   `json:"blocking"`
	Muting     bool   `json:"muting"`
	Requested  bool   `json:"requested"`
}

// PageQuery carries Mastodon's id-based pagination parameters.
type PageQuery struct {
	Limit   int
	MaxID   string
	MinID   string
	SinceID string
}
