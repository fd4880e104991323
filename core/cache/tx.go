package cache

import (
	"errors"
	"fmt"

	"timeline-cache/core/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chunkSize bounds IN lists and insert batches below SQLite's variable limit.
const chunkSize = 200

// Tx is a handle on one open transaction.
type Tx struct {
	db       *gorm.DB
	changes  *changeSet
	readOnly bool
}

func (t *Tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func keyStrings(keys []model.MicroBlogKey) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s := k.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// lastWins collapses items with equal keys to their last occurrence, keeping
// the position of the first one.
func lastWins[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

// FindUsers loads the stored users with the given keys. Missing keys are skipped.
func (t *Tx) FindUsers(keys []model.MicroBlogKey) ([]model.UserRecord, error) {
	var out []model.UserRecord
	for _, chunk := range chunks(keyStrings(keys), chunkSize) {
		var rows []DbUser
		if err := t.db.Where("user_key IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find users: %w", err)
		}
		for _, row := range rows {
			rec, err := userRecord(row)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// UpsertUsers inserts users or replaces the stored row of the same key.
func (t *Tx) UpsertUsers(users []model.UserRecord) error {
	rows := make([]DbUser, 0, len(users))
	for _, u := range users {
		row, err := userRow(u)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return t.RestoreUsers(rows)
}

// RestoreUsers upserts user rows as they are.
func (t *Tx) RestoreUsers(rows []DbUser) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	rows = lastWins(rows, func(r DbUser) string { return r.UserKey })
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_key"}},
		UpdateAll: true,
	}).CreateInBatches(rows, chunkSize).Error
	if err != nil {
		return fmt.Errorf("upsert users: %w", err)
	}
	t.changes.shared = true
	return nil
}

// UpsertStatuses inserts statuses or replaces the stored row of the same
// (status_key, account_key). Within one call the last occurrence wins.
func (t *Tx) UpsertStatuses(statuses []model.StatusRecord) error {
	rows := make([]DbStatus, 0, len(statuses))
	for _, s := range statuses {
		row, err := statusRow(s)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return t.RestoreStatuses(rows)
}

// RestoreStatuses upserts status rows as they are.
func (t *Tx) RestoreStatuses(rows []DbStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	rows = lastWins(rows, func(r DbStatus) string { return r.StatusKey + "\x00" + r.AccountKey })
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "status_key"}, {Name: "account_key"}},
		UpdateAll: true,
	}).CreateInBatches(rows, chunkSize).Error
	if err != nil {
		return fmt.Errorf("upsert statuses: %w", err)
	}
	for _, row := range rows {
		t.changes.accounts[row.AccountKey] = struct{}{}
	}
	return nil
}

// UpsertReferences stores edges. An edge identical in type, source and target
// to a stored one is ignored.
func (t *Tx) UpsertReferences(refs []model.StatusReference) error {
	rows := make([]DbStatusReference, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, referenceRow(r))
	}
	return t.RestoreReferences(rows)
}

// RestoreReferences inserts reference rows, ignoring duplicates.
func (t *Tx) RestoreReferences(rows []DbStatusReference) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	rows = lastWins(rows, func(r DbStatusReference) string {
		return r.ReferenceType + "\x00" + r.StatusKey + "\x00" + r.ReferencedStatusKey
	})
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference_type"}, {Name: "status_key"}, {Name: "referenced_status_key"}},
		DoNothing: true,
	}).CreateInBatches(rows, chunkSize).Error
	if err != nil {
		return fmt.Errorf("upsert references: %w", err)
	}
	t.changes.shared = true
	return nil
}

// UpsertEntries places statuses into buckets. An entry for a status already in
// the bucket only has its sort id updated.
func (t *Tx) UpsertEntries(entries []model.PagingBucketEntry) error {
	rows := make([]DbPagingEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow(e))
	}
	return t.RestoreEntries(rows)
}

// RestoreEntries upserts entry rows as they are.
func (t *Tx) RestoreEntries(rows []DbPagingEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	rows = lastWins(rows, func(r DbPagingEntry) string {
		return r.AccountKey + "\x00" + r.BucketName + "\x00" + r.StatusKey
	})
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_key"}, {Name: "bucket_name"}, {Name: "status_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"sort_id"}),
	}).CreateInBatches(rows, chunkSize).Error
	if err != nil {
		return fmt.Errorf("upsert entries: %w", err)
	}
	for _, row := range rows {
		t.changes.buckets[bucketRef{account: row.AccountKey, bucket: row.BucketName}] = struct{}{}
	}
	return nil
}

// DeleteBucket removes every entry of a bucket. Statuses are kept.
func (t *Tx) DeleteBucket(account model.MicroBlogKey, bucket string) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	res := t.db.Where("account_key = ? AND bucket_name = ?", account.String(), bucket).Delete(&DbPagingEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete bucket %s: %w", bucket, res.Error)
	}
	t.changes.buckets[bucketRef{account: account.String(), bucket: bucket}] = struct{}{}
	return res.RowsAffected, nil
}

// BucketExists reports whether the bucket holds at least one entry.
func (t *Tx) BucketExists(account model.MicroBlogKey, bucket string) (bool, error) {
	var row DbPagingEntry
	err := t.db.Select("id").
		Where("account_key = ? AND bucket_name = ?", account.String(), bucket).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	return true, nil
}

// CountEntries returns the number of entries in a bucket.
func (t *Tx) CountEntries(account model.MicroBlogKey, bucket string) (int64, error) {
	var n int64
	err := t.db.Model(&DbPagingEntry{}).
		Where("account_key = ? AND bucket_name = ?", account.String(), bucket).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count bucket %s: %w", bucket, err)
	}
	return n, nil
}

// FindStatus loads one status of an account. It returns nil when absent.
func (t *Tx) FindStatus(account, key model.MicroBlogKey) (*model.StatusRecord, error) {
	var row DbStatus
	err := t.db.Where("status_key = ? AND account_key = ?", key.String(), account.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find status %s: %w", key, err)
	}
	rec, err := statusRecord(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
