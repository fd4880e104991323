package cache

import (
	"errors"
	"fmt"
	"sort"

	"timeline-cache/core/model"

	"gorm.io/gorm"
)

// maxReferenceDepth is the number of reference hops Joined follows.
const maxReferenceDepth = 3

// EntryQuery selects a window of a bucket.
type EntryQuery struct {
	// Ascending reverses the default newest-first order.
	Ascending bool
	Offset    int
	// Limit caps the result; zero means no limit.
	Limit int
}

func (q EntryQuery) order() string {
	if q.Ascending {
		return "sort_id ASC, status_key ASC"
	}
	return "sort_id DESC, status_key DESC"
}

// Entries returns the entries of a bucket in read order.
func (t *Tx) Entries(account model.MicroBlogKey, bucket string, q EntryQuery) ([]model.PagingBucketEntry, error) {
	tx := t.db.Where("account_key = ? AND bucket_name = ?", account.String(), bucket).Order(q.order())
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []DbPagingEntry
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
	}
	out := make([]model.PagingBucketEntry, 0, len(rows))
	for _, row := range rows {
		e, err := entryRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Edges returns the entries with the highest and the lowest sort id of a
// bucket. Both are nil for an empty bucket.
func (t *Tx) Edges(account model.MicroBlogKey, bucket string) (first, last *model.PagingBucketEntry, err error) {
	pick := func(order string) (*model.PagingBucketEntry, error) {
		var row DbPagingEntry
		err := t.db.Where("account_key = ? AND bucket_name = ?", account.String(), bucket).
			Order(order).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("edge of bucket %s: %w", bucket, err)
		}
		e, err := entryRecord(row)
		if err != nil {
			return nil, err
		}
		return &e, nil
	}
	if first, err = pick("sort_id DESC, status_key DESC"); err != nil || first == nil {
		return nil, nil, err
	}
	if last, err = pick("sort_id ASC, status_key ASC"); err != nil {
		return nil, nil, err
	}
	return first, last, nil
}

// FindStatuses loads statuses of an account keyed by their canonical key.
func (t *Tx) FindStatuses(account model.MicroBlogKey, keys []model.MicroBlogKey) (map[string]model.StatusRecord, error) {
	return t.findStatuses(account.String(), keyStrings(keys))
}

func (t *Tx) findStatuses(account string, keys []string) (map[string]model.StatusRecord, error) {
	out := make(map[string]model.StatusRecord, len(keys))
	for _, chunk := range chunks(keys, chunkSize) {
		var rows []DbStatus
		if err := t.db.Where("account_key = ? AND status_key IN ?", account, chunk).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find statuses: %w", err)
		}
		for _, row := range rows {
			rec, err := statusRecord(row)
			if err != nil {
				return nil, err
			}
			out[row.StatusKey] = rec
		}
	}
	return out, nil
}

// ReferencesFrom returns the edges leaving the given statuses, ordered by
// source, type and target.
func (t *Tx) ReferencesFrom(keys []model.MicroBlogKey) ([]model.StatusReference, error) {
	rows, err := t.referenceRowsFrom(keyStrings(keys))
	if err != nil {
		return nil, err
	}
	out := make([]model.StatusReference, 0, len(rows))
	for _, row := range rows {
		ref, err := referenceRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (t *Tx) referenceRowsFrom(keys []string) ([]DbStatusReference, error) {
	var out []DbStatusReference
	for _, chunk := range chunks(keys, chunkSize) {
		var rows []DbStatusReference
		if err := t.db.Where("status_key IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find references: %w", err)
		}
		out = append(out, rows...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StatusKey != b.StatusKey {
			return a.StatusKey < b.StatusKey
		}
		if a.ReferenceType != b.ReferenceType {
			return a.ReferenceType < b.ReferenceType
		}
		return a.ReferencedStatusKey < b.ReferencedStatusKey
	})
	return out, nil
}

// Joined resolves statuses of an account with their author and referenced
// statuses. References are followed up to maxReferenceDepth hops and collapse
// to one per (status, reference type). Keys that are not stored for the
// account are absent from the result.
func (t *Tx) Joined(account model.MicroBlogKey, keys []model.MicroBlogKey) (map[model.MicroBlogKey]*model.JoinedStatus, error) {
	statuses := make(map[string]model.StatusRecord)
	edges := make(map[string][]DbStatusReference)
	requested := make(map[string]struct{})

	frontier := keyStrings(keys)
	for _, k := range frontier {
		requested[k] = struct{}{}
	}

	for depth := 0; depth <= maxReferenceDepth && len(frontier) > 0; depth++ {
		found, err := t.findStatuses(account.String(), frontier)
		if err != nil {
			return nil, err
		}
		present := make([]string, 0, len(found))
		for k, rec := range found {
			statuses[k] = rec
			present = append(present, k)
		}
		if depth == maxReferenceDepth {
			break
		}

		rows, err := t.referenceRowsFrom(present)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, row := range rows {
			edges[row.StatusKey] = append(edges[row.StatusKey], row)
			if _, ok := requested[row.ReferencedStatusKey]; ok {
				continue
			}
			requested[row.ReferencedStatusKey] = struct{}{}
			next = append(next, row.ReferencedStatusKey)
		}
		frontier = next
	}

	var userKeys []model.MicroBlogKey
	for _, rec := range statuses {
		if rec.UserKey != nil {
			userKeys = append(userKeys, *rec.UserKey)
		}
	}
	found, err := t.FindUsers(userKeys)
	if err != nil {
		return nil, err
	}
	users := make(map[model.MicroBlogKey]model.UserRecord, len(found))
	for _, u := range found {
		users[u.UserKey] = u
	}

	var build func(key string, depth int) *model.JoinedStatus
	build = func(key string, depth int) *model.JoinedStatus {
		rec, ok := statuses[key]
		if !ok {
			return nil
		}
		j := &model.JoinedStatus{Status: rec}
		if rec.UserKey != nil {
			if u, ok := users[*rec.UserKey]; ok {
				j.User = &u
			}
		}
		if depth >= maxReferenceDepth {
			return j
		}
		seen := make(map[string]struct{})
		for _, edge := range edges[key] {
			if _, dup := seen[edge.ReferenceType]; dup {
				continue
			}
			child := build(edge.ReferencedStatusKey, depth+1)
			if child == nil {
				continue
			}
			seen[edge.ReferenceType] = struct{}{}
			j.References = append(j.References, model.JoinedReference{
				Type:   model.ReferenceType(edge.ReferenceType),
				Status: child,
			})
		}
		return j
	}

	out := make(map[model.MicroBlogKey]*model.JoinedStatus, len(keys))
	for _, k := range keys {
		if j := build(k.String(), 0); j != nil {
			out[k] = j
		}
	}
	return out, nil
}
