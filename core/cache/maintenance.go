package cache

import (
	"fmt"

	"timeline-cache/core/model"
)

// StatusKeysOf returns the keys of every status stored for an account.
func (t *Tx) StatusKeysOf(account model.MicroBlogKey) ([]string, error) {
	var keys []string
	err := t.db.Model(&DbStatus{}).Where("account_key = ?", account.String()).
		Order("status_key").Pluck("status_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list statuses of %s: %w", account, err)
	}
	return keys, nil
}

// EntryStatusKeysOf returns the distinct status keys placed in any bucket of an account.
func (t *Tx) EntryStatusKeysOf(account model.MicroBlogKey) ([]string, error) {
	var keys []string
	err := t.db.Model(&DbPagingEntry{}).Distinct("status_key").
		Where("account_key = ?", account.String()).Pluck("status_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", account, err)
	}
	return keys, nil
}

// ReferenceRowsFrom returns the reference rows leaving the given status keys.
func (t *Tx) ReferenceRowsFrom(keys []string) ([]DbStatusReference, error) {
	return t.referenceRowsFrom(keys)
}

// DanglingReferences returns edges whose source status is not stored for any account.
func (t *Tx) DanglingReferences() ([]DbStatusReference, error) {
	var rows []DbStatusReference
	err := t.db.Where("status_key NOT IN (?)", t.db.Model(&DbStatus{}).Select("status_key")).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find dangling references: %w", err)
	}
	return rows, nil
}

// OrphanUsers returns the keys of users no stored status points at.
func (t *Tx) OrphanUsers() ([]string, error) {
	var keys []string
	err := t.db.Model(&DbUser{}).
		Where("user_key NOT IN (?)", t.db.Model(&DbStatus{}).Select("user_key").Where("user_key IS NOT NULL")).
		Order("user_key").Pluck("user_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("find orphan users: %w", err)
	}
	return keys, nil
}

// DeleteStatuses removes statuses of an account.
func (t *Tx) DeleteStatuses(account model.MicroBlogKey, keys []string) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range chunks(keys, chunkSize) {
		res := t.db.Where("account_key = ? AND status_key IN ?", account.String(), chunk).Delete(&DbStatus{})
		if res.Error != nil {
			return total, fmt.Errorf("delete statuses: %w", res.Error)
		}
		total += res.RowsAffected
	}
	if total > 0 {
		t.changes.accounts[account.String()] = struct{}{}
	}
	return total, nil
}

// DeleteReferences removes edges by id.
func (t *Tx) DeleteReferences(ids []string) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range chunks(ids, chunkSize) {
		res := t.db.Where("id IN ?", chunk).Delete(&DbStatusReference{})
		if res.Error != nil {
			return total, fmt.Errorf("delete references: %w", res.Error)
		}
		total += res.RowsAffected
	}
	if total > 0 {
		t.changes.shared = true
	}
	return total, nil
}

// DeleteUsers removes users by key.
func (t *Tx) DeleteUsers(keys []string) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var total int64
	for _, chunk := range chunks(keys, chunkSize) {
		res := t.db.Where("user_key IN ?", chunk).Delete(&DbUser{})
		if res.Error != nil {
			return total, fmt.Errorf("delete users: %w", res.Error)
		}
		total += res.RowsAffected
	}
	if total > 0 {
		t.changes.shared = true
	}
	return total, nil
}

// EachStatusRow calls fn with the status rows of an account in pages of at
// most size rows, ordered by status key.
func (t *Tx) EachStatusRow(account model.MicroBlogKey, size int, fn func([]DbStatus) error) error {
	after := ""
	for {
		var rows []DbStatus
		err := t.db.Where("account_key = ? AND status_key > ?", account.String(), after).
			Order("status_key").Limit(size).Find(&rows).Error
		if err != nil {
			return fmt.Errorf("export statuses: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		after = rows[len(rows)-1].StatusKey
	}
}

// EntryRowsOf returns every entry row of an account.
func (t *Tx) EntryRowsOf(account model.MicroBlogKey) ([]DbPagingEntry, error) {
	var rows []DbPagingEntry
	err := t.db.Where("account_key = ?", account.String()).
		Order("bucket_name, sort_id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export entries: %w", err)
	}
	return rows, nil
}

// UserRowsOf returns the users the statuses of an account point at.
func (t *Tx) UserRowsOf(account model.MicroBlogKey) ([]DbUser, error) {
	var rows []DbUser
	err := t.db.Where("user_key IN (?)",
		t.db.Model(&DbStatus{}).Select("user_key").Where("account_key = ? AND user_key IS NOT NULL", account.String()),
	).Order("user_key").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	return rows, nil
}

// ReferenceRowsOf returns the edges leaving statuses of an account.
func (t *Tx) ReferenceRowsOf(account model.MicroBlogKey) ([]DbStatusReference, error) {
	var rows []DbStatusReference
	err := t.db.Where("status_key IN (?)",
		t.db.Model(&DbStatus{}).Select("status_key").Where("account_key = ?", account.String()),
	).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export references: %w", err)
	}
	return rows, nil
}
