// Package bluesky holds the app.bsky objects handed to the engine by the network layer.
package bluesky

import "time"

// ActorViewerState is the viewer's relation to an actor.
type ActorViewerState struct {
	Muted       bool    `json:"muted"`
	BlockedBy   bool    `json:"blockedBy"`
	Following   *string `json:"following,omitempty"`
	FollowedBy  *string `json:"followedBy,omitempty"`
	KnownFollow *int64  `json:"knownFollowers,omitempty"`
}

// Label is a moderation label.
type Label struct {
	Src string `json:"src"`
	URI string `json:"uri"`
	Val string `json:"val"`
}

// ProfileViewBasic is the compact actor embedded in posts.
type ProfileViewBasic struct {
	DID         string            `json:"did" validate:"required"`
	Handle      string            `json:"handle" validate:"required"`
	DisplayName *string           `json:"displayName,omitempty"`
	Avatar      *string           `json:"avatar,omitempty"`
	Viewer      *ActorViewerState `json:"viewer,omitempty"`
	Labels      []Label           `json:"labels,omitempty"`
}

// ProfileView is the actor shape used by notifications.
type ProfileView struct {
	ProfileViewBasic
	Description *string    `json:"description,omitempty"`
	IndexedAt   *time.Time `json:"indexedAt,omitempty"`
}

// ProfileViewDetailed is the full profile returned by getProfile.
type ProfileViewDetailed struct {
	ProfileViewBasic
	Description    *string    `json:"description,omitempty"`
	Banner         *string    `json:"banner,omitempty"`
	FollowersCount int64      `json:"followersCount"`
	FollowsCount   int64      `json:"followsCount"`
	PostsCount     int64      `json:"postsCount"`
	IndexedAt      *time.Time `json:"indexedAt,omitempty"`
}

// StrongRef points at a record by URI and CID.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRef links a post record to its thread.
type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

// PostRecord is the app.bsky.feed.post record.
type PostRecord struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Langs     []string  `json:"langs,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
}

// EmbedImage is one image of an images embed.
type EmbedImage struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

// EmbedExternal is a link card.
type EmbedExternal struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb,omitempty"`
}

// EmbedRecord is a quoted post, already hydrated by the AppView.
type EmbedRecord struct {
	URI       string            `json:"uri"`
	CID       string            `json:"cid"`
	Author    *ProfileViewBasic `json:"author,omitempty"`
	Value     *PostRecord       `json:"value,omitempty"`
	IndexedAt time.Time         `json:"indexedAt"`
}

// Embed is the union of embed views; at most one member is set except for
// recordWithMedia, where Record and Images/External coexist.
type Embed struct {
	Type     string         `json:"$type"`
	Images   []EmbedImage   `json:"images,omitempty"`
	External *EmbedExternal `json:"external,omitempty"`
	Record   *EmbedRecord   `json:"record,omitempty"`
}

// PostViewerState is the viewer's interaction with a post.
type PostViewerState struct {
	Like   *string `json:"like,omitempty"`
	Repost *string `json:"repost,omitempty"`
}

// PostView is a hydrated post.
type PostView struct {
	URI         string            `json:"uri" validate:"required"`
	CID         string            `json:"cid"`
	Author      *ProfileViewBasic `json:"author" validate:"required"`
	Record      PostRecord        `json:"record"`
	Embed       *Embed            `json:"embed,omitempty"`
	ReplyCount  int64             `json:"replyCount"`
	RepostCount int64             `json:"repostCount"`
	LikeCount   int64             `json:"likeCount"`
	QuoteCount  int64             `json:"quoteCount"`
	IndexedAt   time.Time         `json:"indexedAt"`
	Viewer      *PostViewerState  `json:"viewer,omitempty"`
	Labels      []Label           `json:"labels,omitempty"`
}

// ReasonRepost marks a feed item that appears because someone reposted it.
type ReasonRepost struct {
	By        *ProfileViewBasic `json:"by" validate:"required"`
	IndexedAt time.Time         `json:"indexedAt"`
}

// FeedReplyRef carries the hydrated thread parents of a feed item.
type FeedReplyRef struct {
	Root   *PostView `json:"root,omitempty"`
	Parent *PostView `json:"parent,omitempty"`
}

// FeedViewPost is one item of a feed.
type FeedViewPost struct {
	Post   *PostView     `json:"post" validate:"required"`
	Reply  *FeedReplyRef `json:"reply,omitempty"`
	Reason *ReasonRepost `json:"reason,omitempty"`
}

// FeedPage is one page of getTimeline / getAuthorFeed.
type FeedPage struct {
	Feed   []FeedViewPost `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// Notification reasons.
const (
	NotificationReasonLike    = "like"
	NotificationReasonRepost  = "repost"
	NotificationReasonFollow  = "follow"
	NotificationReasonMention = "mention"
	NotificationReasonReply   = "reply"
	NotificationReasonQuote   = "quote"
)

// Notification is one entry of listNotifications.
type Notification struct {
	URI           string       `json:"uri" validate:"required"`
	CID           string       `json:"cid"`
	Author        *ProfileView `json:"author" validate:"required"`
	Reason        string       `json:"reason" validate:"required"`
	ReasonSubject *string      `json:"reasonSubject,omitempty"`
	IsRead        bool         `json:"isRead"`
	IndexedAt     time.Time    `json:"indexedAt"`
}

// NotificationPage is a page of notifications together with the posts they
// refer to, fetched by the network layer with getPosts.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Posts         []PostView     `json:"posts"`
	Cursor        string         `json:"cursor,omitempty"`
}

// ThreadViewPost is a node of getPostThread.
type ThreadViewPost struct {
	Post    *PostView        `json:"post" validate:"required"`
	Parent  *ThreadViewPost  `json:"parent,omitempty"`
	Replies []ThreadViewPost `json:"replies,omitempty"`
}

// PageQuery carries Bluesky's cursor-based pagination parameters.
type PageQuery struct {
	Limit  int
	Cursor string
}
