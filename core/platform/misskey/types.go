// Package misskey holds the Misskey API objects handed to the engine by the network layer.
package misskey

import "time"

// Emoji is a custom emoji reference embedded in users and notes.
type Emoji struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UserLite is the compact user embedded in notes and notifications.
type UserLite struct {
	ID             string            `json:"id" validate:"required"`
	Name           *string           `json:"name"`
	Username       string            `json:"username" validate:"required"`
	Host           *string           `json:"host"`
	AvatarURL      string            `json:"avatarUrl"`
	AvatarBlurhash string            `json:"avatarBlurhash"`
	IsBot          bool              `json:"isBot"`
	IsCat          bool              `json:"isCat"`
	OnlineStatus   string            `json:"onlineStatus"`
	Emojis         map[string]string `json:"emojis"`
}

// Field is a profile metadata row.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UserDetailed is the full profile returned by users/show.
type UserDetailed struct {
	UserLite
	Description    *string   `json:"description"`
	BannerURL      *string   `json:"bannerUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	FollowersCount int64     `json:"followersCount"`
	FollowingCount int64     `json:"followingCount"`
	NotesCount     int64     `json:"notesCount"`
	IsFollowing    bool      `json:"isFollowing"`
	IsFollowed     bool      `json:"isFollowed"`
	IsLocked       bool      `json:"isLocked"`
	Fields         []Field   `json:"fields"`
}

// DriveFile is an attached file.
type DriveFile struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Comment      string `json:"comment"`
	IsSensitive  bool   `json:"isSensitive"`
}

// Poll is an attached poll.
type Poll struct {
	Multiple  bool         `json:"multiple"`
	ExpiresAt *time.Time   `json:"expiresAt"`
	Choices   []PollChoice `json:"choices"`
}

// PollChoice is one poll option.
type PollChoice struct {
	Text    string `json:"text"`
	Votes   int64  `json:"votes"`
	IsVoted bool   `json:"isVoted"`
}

// Note is a Misskey post. A pure renote has no text and a non-nil Renote.
type Note struct {
	ID             string            `json:"id" validate:"required"`
	CreatedAt      time.Time         `json:"createdAt"`
	Text           *string           `json:"text"`
	CW             *string           `json:"cw"`
	UserID         string            `json:"userId"`
	User           *UserLite         `json:"user" validate:"required"`
	ReplyID        *string           `json:"replyId"`
	RenoteID       *string           `json:"renoteId"`
	Reply          *Note             `json:"reply"`
	Renote         *Note             `json:"renote"`
	Visibility     string            `json:"visibility"`
	LocalOnly      bool              `json:"localOnly"`
	Files          []DriveFile       `json:"files"`
	Poll           *Poll             `json:"poll"`
	Reactions      map[string]int64  `json:"reactions"`
	ReactionEmojis map[string]string `json:"reactionEmojis"`
	MyReaction     *string           `json:"myReaction"`
	RenoteCount    int64             `json:"renoteCount"`
	RepliesCount   int64             `json:"repliesCount"`
	URI            *string           `json:"uri"`
	URL            *string           `json:"url"`
	Emojis         map[string]string `json:"emojis"`
}

// IsPureRenote reports whether the note only re-shares another note.
func (n Note) IsPureRenote() bool {
	return n.Renote != nil && (n.Text == nil || *n.Text == "") && len(n.Files) == 0 && n.Poll == nil
}

// Notification types.
const (
	NotificationFollow                = "follow"
	NotificationMention               = "mention"
	NotificationReply                 = "reply"
	NotificationRenote                = "renote"
	NotificationQuote                 = "quote"
	NotificationReaction              = "reaction"
	NotificationPollEnded             = "pollEnded"
	NotificationReceiveFollowRequest  = "receiveFollowRequest"
	NotificationFollowRequestAccepted = "followRequestAccepted"
	NotificationAchievementEarned     = "achievementEarned"
	NotificationApp                   = "app"
)

// Notification is an event about the viewing account. User is absent for
// system notifications such as achievements.
type Notification struct {
	ID          string    `json:"id" validate:"required"`
	CreatedAt   time.Time `json:"createdAt"`
	Type        string    `json:"type" validate:"required"`
	UserID      *string   `json:"userId"`
	User        *UserLite `json:"user"`
	Note        *Note     `json:"note"`
	Reaction    *string   `json:"reaction"`
	Achievement *string   `json:"achievement"`
}

// PageQuery carries Misskey's id-based pagination parameters.
type PageQuery struct {
	Limit   int
	SinceID string
	UntilID string
}
