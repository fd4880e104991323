package model

// Well known bucket names. Parameterised buckets are built with the helpers below.
const (
	BucketHome = "home"
)

// UserBucket is the bucket holding a user's own timeline.
func UserBucket(user MicroBlogKey) string {
	return "user_" + user.String()
}

// StatusBucket holds the full conversation around a status.
func StatusBucket(status MicroBlogKey) string {
	return "status_" + status.String()
}

// StatusOnlyBucket holds exactly one status, without context.
func StatusOnlyBucket(status MicroBlogKey) string {
	return "status_only_" + status.String()
}

// NotificationBucket holds notifications of one kind ("all", "mentions", ...).
func NotificationBucket(kind string) string {
	return "notification_" + kind
}

// ListBucket holds a list or antenna timeline.
func ListBucket(id string) string {
	return "list_" + id
}

// RSSBucket holds the items of one feed.
func RSSBucket(feedURL string) string {
	return "rss_" + feedURL
}

// BucketRef names one paging bucket of one account.
type BucketRef struct {
	Account MicroBlogKey `json:"account"`
	Name    string       `json:"name"`
}

func (b BucketRef) String() string {
	return b.Account.String() + "/" + b.Name
}
