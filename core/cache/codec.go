package cache

import (
	"encoding/json"
	"fmt"

	"timeline-cache/core/model"

	"gorm.io/datatypes"
)

func statusRow(r model.StatusRecord) (DbStatus, error) {
	if r.Content == nil {
		return DbStatus{}, fmt.Errorf("status %s has no content", r.StatusKey)
	}
	raw, err := json.Marshal(r.Content)
	if err != nil {
		return DbStatus{}, fmt.Errorf("encode status %s: %w", r.StatusKey, err)
	}
	row := DbStatus{
		StatusKey:   r.StatusKey.String(),
		AccountKey:  r.AccountKey.String(),
		Platform:    string(r.Platform),
		ContentKind: string(r.Content.Kind()),
		Content:     datatypes.JSON(raw),
		PublishedAt: r.CreatedAt.UTC(),
	}
	if r.UserKey != nil {
		k := r.UserKey.String()
		row.UserKey = &k
	}
	return row, nil
}

func statusRecord(row DbStatus) (model.StatusRecord, error) {
	statusKey, err := model.ParseKey(row.StatusKey)
	if err != nil {
		return model.StatusRecord{}, err
	}
	accountKey, err := model.ParseKey(row.AccountKey)
	if err != nil {
		return model.StatusRecord{}, err
	}
	content, err := model.DecodeStatusContent(model.ContentKind(row.ContentKind), row.Content)
	if err != nil {
		return model.StatusRecord{}, fmt.Errorf("status %s: %w", row.StatusKey, err)
	}
	rec := model.StatusRecord{
		StatusKey:  statusKey,
		AccountKey: accountKey,
		Platform:   model.PlatformType(row.Platform),
		Content:    content,
		CreatedAt:  row.PublishedAt,
	}
	if row.UserKey != nil {
		userKey, err := model.ParseKey(*row.UserKey)
		if err != nil {
			return model.StatusRecord{}, err
		}
		rec.UserKey = &userKey
	}
	return rec, nil
}

func userRow(u model.UserRecord) (DbUser, error) {
	if u.Content == nil {
		return DbUser{}, fmt.Errorf("user %s has no content", u.UserKey)
	}
	raw, err := json.Marshal(u.Content)
	if err != nil {
		return DbUser{}, fmt.Errorf("encode user %s: %w", u.UserKey, err)
	}
	return DbUser{
		UserKey:     u.UserKey.String(),
		Platform:    string(u.Platform),
		Name:        u.Name,
		Handle:      u.Handle,
		Host:        u.Host,
		AvatarURL:   u.AvatarURL,
		ContentKind: string(u.Content.Kind()),
		Full:        u.Content.Full(),
		Content:     datatypes.JSON(raw),
	}, nil
}

func userRecord(row DbUser) (model.UserRecord, error) {
	key, err := model.ParseKey(row.UserKey)
	if err != nil {
		return model.UserRecord{}, err
	}
	content, err := model.DecodeUserContent(model.ContentKind(row.ContentKind), row.Content)
	if err != nil {
		return model.UserRecord{}, fmt.Errorf("user %s: %w", row.UserKey, err)
	}
	return model.UserRecord{
		UserKey:   key,
		Platform:  model.PlatformType(row.Platform),
		Name:      row.Name,
		Handle:    row.Handle,
		Host:      row.Host,
		AvatarURL: row.AvatarURL,
		Content:   content,
	}, nil
}

func referenceRow(r model.StatusReference) DbStatusReference {
	return DbStatusReference{
		ID:                  r.ID,
		ReferenceType:       string(r.Type),
		StatusKey:           r.StatusKey.String(),
		ReferencedStatusKey: r.ReferencedStatusKey.String(),
	}
}

func referenceRecord(row DbStatusReference) (model.StatusReference, error) {
	from, err := model.ParseKey(row.StatusKey)
	if err != nil {
		return model.StatusReference{}, err
	}
	to, err := model.ParseKey(row.ReferencedStatusKey)
	if err != nil {
		return model.StatusReference{}, err
	}
	return model.StatusReference{
		ID:                  row.ID,
		Type:                model.ReferenceType(row.ReferenceType),
		StatusKey:           from,
		ReferencedStatusKey: to,
	}, nil
}

func entryRow(e model.PagingBucketEntry) DbPagingEntry {
	return DbPagingEntry{
		ID:         e.ID,
		AccountKey: e.AccountKey.String(),
		BucketName: e.BucketName,
		StatusKey:  e.StatusKey.String(),
		SortID:     e.SortID,
	}
}

func entryRecord(row DbPagingEntry) (model.PagingBucketEntry, error) {
	account, err := model.ParseKey(row.AccountKey)
	if err != nil {
		return model.PagingBucketEntry{}, err
	}
	status, err := model.ParseKey(row.StatusKey)
	if err != nil {
		return model.PagingBucketEntry{}, err
	}
	return model.PagingBucketEntry{
		ID:         row.ID,
		AccountKey: account,
		BucketName: row.BucketName,
		StatusKey:  status,
		SortID:     row.SortID,
	}, nil
}
