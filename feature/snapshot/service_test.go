package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"timeline-cache/core/cache"
	"timeline-cache/core/cache/cachetest"
	"timeline-cache/core/model"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/core/storage"
	"timeline-cache/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	acc1 = model.NewKey("1", "example.social")
	at   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

var storageCfg = storage.Config{Bucket: "snap", Prefix: "snapshots/"}

func status(id, author string) model.StatusRecord {
	user := model.NewKey(author, "example.social")
	return model.StatusRecord{
		StatusKey:  model.NewKey(id, "example.social"),
		AccountKey: acc1,
		Platform:   model.PlatformMastodon,
		UserKey:    &user,
		Content: model.MastodonStatus{Status: &mastodon.Status{
			ID:        id,
			Content:   "post " + id,
			CreatedAt: at,
			Account:   &mastodon.Account{ID: author, Acct: author},
		}},
		CreatedAt: at,
	}
}

func seed(t *testing.T, store *cache.Store) {
	t.Helper()
	err := store.Transaction(context.Background(), func(tx *cache.Tx) error {
		if err := tx.UpsertUsers([]model.UserRecord{{
			UserKey:  model.NewKey("u1", "example.social"),
			Platform: model.PlatformMastodon,
			Name:     "User One",
			Handle:   "u1@example.social",
			Host:     "example.social",
			Content:  model.MastodonUser{Account: &mastodon.Account{ID: "u1", Acct: "u1"}},
		}}); err != nil {
			return err
		}
		if err := tx.UpsertStatuses([]model.StatusRecord{status("p1", "u1"), status("p2", "u1")}); err != nil {
			return err
		}
		if err := tx.UpsertReferences([]model.StatusReference{{
			Type:                model.ReferenceReply,
			StatusKey:           model.NewKey("p2", "example.social"),
			ReferencedStatusKey: model.NewKey("p1", "example.social"),
		}}); err != nil {
			return err
		}
		return tx.UpsertEntries([]model.PagingBucketEntry{
			{AccountKey: acc1, BucketName: "home", StatusKey: model.NewKey("p1", "example.social"), SortID: 1},
			{AccountKey: acc1, BucketName: "home", StatusKey: model.NewKey("p2", "example.social"), SortID: 2},
		})
	})
	require.NoError(t, err)
}

func objects(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

// exportTo runs an export against a mock that captures the uploaded body.
func exportTo(t *testing.T, store *cache.Store) (*Result, []byte) {
	t.Helper()
	m := new(mocks.Client)
	var body []byte
	m.On("BucketExists", mock.Anything, "snap").Return(true, nil)
	m.On("PutObject", mock.Anything, "snap", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			body, _ = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{}, nil)

	svc := NewService(m, storageCfg, store, zap.NewNop(), Config{BatchSize: 1})
	svc.now = func() time.Time { return at }

	res, err := svc.Export(context.Background(), acc1)
	require.NoError(t, err)
	m.AssertExpectations(t)
	return res, body
}

func TestExportImport(t *testing.T) {
	src := cachetest.NewStore(t, nil)
	seed(t, src)

	res, body := exportTo(t, src)
	assert.Equal(t, "snapshots/1@example.social/20240501T120000.000000000Z.jsonl", res.Key)
	assert.Equal(t, Counts{Users: 1, Statuses: 2, References: 1, Entries: 2}, res.Counts)

	dst := cachetest.NewStore(t, nil)
	m := new(mocks.Client)
	m.On("GetObject", mock.Anything, "snap", res.Key, minio.GetObjectOptions{}).
		Return(io.NopCloser(bytes.NewReader(body)), nil)

	svc := NewService(m, storageCfg, dst, zap.NewNop(), Config{})
	imported, err := svc.Import(context.Background(), res.Key)
	require.NoError(t, err)
	assert.Equal(t, res.Counts, imported.Counts)
	assert.Equal(t, acc1.String(), imported.Header.Account)

	err = dst.Read(context.Background(), func(tx *cache.Tx) error {
		n, err := tx.CountEntries(acc1, "home")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := tx.FindStatus(acc1, model.NewKey("p2", "example.social"))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.KindMastodonStatus, got.Content.Kind())

		users, err := tx.FindUsers([]model.MicroBlogKey{model.NewKey("u1", "example.social")})
		require.NoError(t, err)
		assert.Len(t, users, 1)

		refs, err := tx.ReferencesFrom([]model.MicroBlogKey{model.NewKey("p2", "example.social")})
		require.NoError(t, err)
		assert.Len(t, refs, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestImport_IsIdempotent(t *testing.T) {
	src := cachetest.NewStore(t, nil)
	seed(t, src)
	res, body := exportTo(t, src)

	m := new(mocks.Client)
	m.On("GetObject", mock.Anything, "snap", res.Key, minio.GetObjectOptions{}).
		Return(io.NopCloser(bytes.NewReader(body)), nil).Once()
	m.On("GetObject", mock.Anything, "snap", res.Key, minio.GetObjectOptions{}).
		Return(io.NopCloser(bytes.NewReader(body)), nil).Once()

	// Importing into the source store again must not duplicate anything.
	svc := NewService(m, storageCfg, src, zap.NewNop(), Config{})
	_, err := svc.Import(context.Background(), res.Key)
	require.NoError(t, err)
	_, err = svc.Import(context.Background(), res.Key)
	require.NoError(t, err)

	err = src.Read(context.Background(), func(tx *cache.Tx) error {
		n, err := tx.CountEntries(acc1, "home")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		refs, err := tx.ReferenceRowsOf(acc1)
		require.NoError(t, err)
		assert.Len(t, refs, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestImport_RejectsTruncated(t *testing.T) {
	src := cachetest.NewStore(t, nil)
	seed(t, src)
	res, body := exportTo(t, src)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	truncated := strings.Join(lines[:len(lines)-2], "\n") + "\n"

	m := new(mocks.Client)
	m.On("GetObject", mock.Anything, "snap", res.Key, minio.GetObjectOptions{}).
		Return(io.NopCloser(strings.NewReader(truncated)), nil)

	dst := cachetest.NewStore(t, nil)
	svc := NewService(m, storageCfg, dst, zap.NewNop(), Config{})
	_, err := svc.Import(context.Background(), res.Key)
	assert.ErrorContains(t, err, "truncated")

	err = dst.Read(context.Background(), func(tx *cache.Tx) error {
		keys, err := tx.StatusKeysOf(acc1)
		require.NoError(t, err)
		assert.Empty(t, keys)
		return nil
	})
	require.NoError(t, err)
}

func TestImport_RejectsForeignRows(t *testing.T) {
	body := `{"kind":"header","header":{"version":1,"account":"1@example.social","created_at":"2024-05-01T12:00:00Z"}}
{"kind":"entry","entry":{"id":"e1","account_key":"2@example.social","bucket_name":"home","status_key":"p1@example.social","sort_id":1}}
{"kind":"footer","counts":{"users":0,"statuses":0,"references":0,"entries":1}}
`
	m := new(mocks.Client)
	m.On("GetObject", mock.Anything, "snap", "k", minio.GetObjectOptions{}).
		Return(io.NopCloser(strings.NewReader(body)), nil)

	svc := NewService(m, storageCfg, cachetest.NewStore(t, nil), zap.NewNop(), Config{})
	_, err := svc.Import(context.Background(), "k")
	assert.ErrorIs(t, err, ErrForeignRow)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "empty snapshot"},
		{"no header", `{"kind":"entry","entry":{}}`, "expected header"},
		{"bad version", `{"kind":"header","header":{"version":9}}`, "unsupported snapshot version"},
		{"garbage", "{", "line 1"},
		{"data after footer", `{"kind":"header","header":{"version":1}}
{"kind":"footer","counts":{}}
{"kind":"entry","entry":{}}`, "data after footer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(strings.NewReader(tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestList(t *testing.T) {
	m := new(mocks.Client)
	m.On("ListObjects", mock.Anything, "snap", minio.ListObjectsOptions{Prefix: "snapshots/", Recursive: true}).
		Return(objects(
			minio.ObjectInfo{Key: "snapshots/1@example.social/20240101T000000.000000000Z.jsonl", Size: 10},
			minio.ObjectInfo{Key: "snapshots/1@example.social/20240301T000000.000000000Z.jsonl", Size: 20},
			minio.ObjectInfo{Key: "snapshots/readme.txt"},
		))

	svc := NewService(m, storageCfg, nil, zap.NewNop(), Config{})
	infos, err := svc.List(context.Background(), model.MicroBlogKey{})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, int64(20), infos[0].Size)
	assert.Equal(t, "1@example.social", infos[0].Account)
}

func TestList_Error(t *testing.T) {
	m := new(mocks.Client)
	m.On("ListObjects", mock.Anything, "snap", mock.Anything).
		Return(objects(minio.ObjectInfo{Err: errors.New("denied")}))

	svc := NewService(m, storageCfg, nil, zap.NewNop(), Config{})
	_, err := svc.List(context.Background(), acc1)
	assert.ErrorContains(t, err, "denied")
}

func TestRotate(t *testing.T) {
	prefix := "snapshots/1@example.social/"
	m := new(mocks.Client)
	m.On("ListObjects", mock.Anything, "snap", minio.ListObjectsOptions{Prefix: prefix, Recursive: true}).
		Return(objects(
			minio.ObjectInfo{Key: prefix + "20240101T000000.000000000Z.jsonl"},
			minio.ObjectInfo{Key: prefix + "20240301T000000.000000000Z.jsonl"},
			minio.ObjectInfo{Key: prefix + "20240201T000000.000000000Z.jsonl"},
		))

	var removed []string
	m.On("RemoveObjects", mock.Anything, "snap", mock.Anything, minio.RemoveObjectsOptions{}).
		Run(func(args mock.Arguments) {
			for obj := range args.Get(2).(<-chan minio.ObjectInfo) {
				removed = append(removed, obj.Key)
			}
		}).
		Return(nil)

	svc := NewService(m, storageCfg, nil, zap.NewNop(), Config{Keep: 1})
	n, err := svc.Rotate(context.Background(), acc1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{
		prefix + "20240201T000000.000000000Z.jsonl",
		prefix + "20240101T000000.000000000Z.jsonl",
	}, removed)
}

func TestRotate_KeepAll(t *testing.T) {
	m := new(mocks.Client)
	svc := NewService(m, storageCfg, nil, zap.NewNop(), Config{Keep: 0})

	n, err := svc.Rotate(context.Background(), acc1)
	require.NoError(t, err)
	assert.Zero(t, n)
	m.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
}

func TestParseObjectKey(t *testing.T) {
	account, at, err := ParseObjectKey("snapshots/", "snapshots/1@example.social/20240501T120000.000000000Z.jsonl")
	require.NoError(t, err)
	assert.Equal(t, acc1, account)
	assert.True(t, at.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	for _, key := range []string{
		"other/1@example.social/20240501T120000.000000000Z.jsonl",
		"snapshots/1@example.social/",
		"snapshots/1@example.social/notes.txt",
		"snapshots/nohost/20240501T120000.000000000Z.jsonl",
		"snapshots/1@example.social/deep/20240501T120000.000000000Z.jsonl",
	} {
		_, _, err := ParseObjectKey("snapshots/", key)
		assert.Error(t, err, key)
	}
}
