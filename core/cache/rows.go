package cache

import (
	"time"

	"gorm.io/datatypes"
)

// Key columns are 191 characters wide so that composite indexes stay within
// MySQL's utf8mb4 index length limit.

// DbStatus is a stored status as seen by one account.
type DbStatus struct {
	StatusKey   string         `gorm:"primaryKey;size:191" json:"status_key"`
	AccountKey  string         `gorm:"primaryKey;size:191;index:idx_status_account" json:"account_key"`
	Platform    string         `gorm:"size:16;not null" json:"platform"`
	UserKey     *string        `gorm:"size:191;index:idx_status_user" json:"user_key,omitempty"`
	ContentKind string         `gorm:"size:32;not null" json:"content_kind"`
	Content     datatypes.JSON `gorm:"not null" json:"content"`
	PublishedAt time.Time      `gorm:"index:idx_status_published" json:"published_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName pins the table name.
func (DbStatus) TableName() string { return "statuses" }

// DbUser is a stored user profile.
type DbUser struct {
	UserKey     string         `gorm:"primaryKey;size:191" json:"user_key"`
	Platform    string         `gorm:"size:16;not null" json:"platform"`
	Name        string         `gorm:"size:255" json:"name"`
	Handle      string         `gorm:"size:255;index:idx_user_handle" json:"handle"`
	Host        string         `gorm:"size:191" json:"host"`
	AvatarURL   string         `gorm:"size:1024" json:"avatar_url"`
	ContentKind string         `gorm:"size:32;not null" json:"content_kind"`
	Full        bool           `gorm:"not null;default:false" json:"full"`
	Content     datatypes.JSON `gorm:"not null" json:"content"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName pins the table name.
func (DbUser) TableName() string { return "users" }

// DbStatusReference is an edge between two statuses.
type DbStatusReference struct {
	ID                  string `gorm:"primaryKey;size:36" json:"id"`
	ReferenceType       string `gorm:"size:32;not null;uniqueIndex:idx_reference_edge,priority:1" json:"reference_type"`
	StatusKey           string `gorm:"size:191;not null;uniqueIndex:idx_reference_edge,priority:2;index:idx_reference_source" json:"status_key"`
	ReferencedStatusKey string `gorm:"size:191;not null;uniqueIndex:idx_reference_edge,priority:3;index:idx_reference_target" json:"referenced_status_key"`
}

// TableName pins the table name.
func (DbStatusReference) TableName() string { return "status_references" }

// DbPagingEntry places a status in a bucket of an account.
type DbPagingEntry struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	AccountKey string `gorm:"size:191;not null;uniqueIndex:idx_entry_status,priority:1;index:idx_entry_order,priority:1" json:"account_key"`
	BucketName string `gorm:"size:191;not null;uniqueIndex:idx_entry_status,priority:2;index:idx_entry_order,priority:2" json:"bucket_name"`
	StatusKey  string `gorm:"size:191;not null;uniqueIndex:idx_entry_status,priority:3" json:"status_key"`
	SortID     int64  `gorm:"not null;index:idx_entry_order,priority:3" json:"sort_id"`
}

// TableName pins the table name.
func (DbPagingEntry) TableName() string { return "paging_entries" }

// Models lists every table of the cache, in migration order.
func Models() []any {
	return []any{&DbUser{}, &DbStatus{}, &DbStatusReference{}, &DbPagingEntry{}}
}

// Indexes lists the lookup indexes the cache relies on, by table.
func Indexes() map[string][]string {
	return map[string][]string{
		"statuses":          {"idx_status_account", "idx_status_user"},
		"status_references": {"idx_reference_edge", "idx_reference_source", "idx_reference_target"},
		"paging_entries":    {"idx_entry_status", "idx_entry_order"},
	}
}
