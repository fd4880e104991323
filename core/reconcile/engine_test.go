package reconcile

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"timeline-cache/core/cache"
	"timeline-cache/core/cache/cachetest"
	"timeline-cache/core/model"
	"timeline-cache/core/platform/misskey"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const host = "misskey.example"

var account = model.NewKey("me", host)

func strPtr(s string) *string { return &s }

func liteUser(id, name, avatar string) model.UserRecord {
	return model.UserRecord{
		UserKey:   model.NewKey(id, host),
		Platform:  model.PlatformMisskey,
		Name:      name,
		Handle:    id,
		Host:      host,
		AvatarURL: avatar,
		Content: model.MisskeyUserLite{User: &misskey.UserLite{
			ID: id, Username: id, Name: strPtr(name), AvatarURL: avatar,
		}},
	}
}

func fullUser(id, name, description string) model.UserRecord {
	return model.UserRecord{
		UserKey:  model.NewKey(id, host),
		Platform: model.PlatformMisskey,
		Name:     name,
		Handle:   id,
		Host:     host,
		Content: model.MisskeyUser{User: &misskey.UserDetailed{
			UserLite:       misskey.UserLite{ID: id, Username: id, Name: strPtr(name)},
			Description:    strPtr(description),
			FollowersCount: 42,
		}},
	}
}

func note(id, userID, text string, at time.Time) model.StatusRecord {
	author := model.NewKey(userID, host)
	return model.StatusRecord{
		StatusKey:  model.NewKey(id, host),
		AccountKey: account,
		Platform:   model.PlatformMisskey,
		UserKey:    &author,
		Content: model.MisskeyStatus{Note: &misskey.Note{
			ID: id, CreatedAt: at, Text: strPtr(text), UserID: userID,
			User: &misskey.UserLite{ID: userID, Username: userID},
		}},
		CreatedAt: at,
	}
}

func homeEntry(id string, sortID int64) model.PagingBucketEntry {
	return model.PagingBucketEntry{
		AccountKey: account,
		BucketName: model.BucketHome,
		StatusKey:  model.NewKey(id, host),
		SortID:     sortID,
	}
}

func countRows(t *testing.T, store *cache.Store, table any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Model(table).Count(&n).Error)
	return n
}

func TestMerge_Idempotent(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	batch := Batch{
		Statuses: []model.StatusRecord{note("n1", "alice", "hi", at), note("n2", "bob", "yo", at.Add(time.Minute))},
		Users:    []model.UserRecord{liteUser("alice", "Alice", ""), liteUser("bob", "Bob", "")},
		References: []model.StatusReference{{
			Type: model.ReferenceReply, StatusKey: model.NewKey("n2", host), ReferencedStatusKey: model.NewKey("n1", host),
		}},
		Entries: []model.PagingBucketEntry{homeEntry("n1", 1), homeEntry("n2", 2)},
	}

	for i := 0; i < 3; i++ {
		summary, err := engine.Merge(ctx, batch, MergeOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Statuses)
	}

	assert.Equal(t, int64(2), countRows(t, store, &cache.DbStatus{}))
	assert.Equal(t, int64(2), countRows(t, store, &cache.DbUser{}))
	assert.Equal(t, int64(1), countRows(t, store, &cache.DbStatusReference{}))
	assert.Equal(t, int64(2), countRows(t, store, &cache.DbPagingEntry{}))
}

func TestMerge_LiteNeverDowngradesFull(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	ctx := context.Background()

	_, err := engine.Merge(ctx, Batch{Users: []model.UserRecord{fullUser("alice", "Alice", "bio")}}, MergeOptions{})
	require.NoError(t, err)

	summary, err := engine.Merge(ctx, Batch{
		Users: []model.UserRecord{liteUser("alice", "Alice Renamed", "https://cdn/a.png")},
	}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Patched)

	require.NoError(t, store.Read(ctx, func(tx *cache.Tx) error {
		users, err := tx.FindUsers([]model.MicroBlogKey{model.NewKey("alice", host)})
		require.NoError(t, err)
		require.Len(t, users, 1)

		u := users[0]
		assert.True(t, u.IsFull())
		assert.Equal(t, "Alice Renamed", u.Name)
		assert.Equal(t, "https://cdn/a.png", u.AvatarURL)

		detail := u.Content.(model.MisskeyUser).User
		assert.Equal(t, "Alice Renamed", *detail.Name)
		assert.Equal(t, "bio", *detail.Description, "full-only fields survive")
		assert.Equal(t, int64(42), detail.FollowersCount)
		return nil
	}))
}

func TestMerge_FullReplacesLite(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	ctx := context.Background()

	_, err := engine.Merge(ctx, Batch{Users: []model.UserRecord{liteUser("bob", "Bob", "")}}, MergeOptions{})
	require.NoError(t, err)
	// Within one batch the full profile wins over a later lite one.
	_, err = engine.Merge(ctx, Batch{Users: []model.UserRecord{
		fullUser("bob", "Bob", "hello"),
		liteUser("bob", "Bobby", ""),
	}}, MergeOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Read(ctx, func(tx *cache.Tx) error {
		users, err := tx.FindUsers([]model.MicroBlogKey{model.NewKey("bob", host)})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.True(t, users[0].IsFull())
		assert.Equal(t, "hello", *users[0].Content.(model.MisskeyUser).User.Description)
		return nil
	}))
}

func TestMerge_ReplaceBucket(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := engine.Merge(ctx, Batch{
		Statuses: []model.StatusRecord{note("old", "alice", "old", at)},
		Entries:  []model.PagingBucketEntry{homeEntry("old", 1)},
	}, MergeOptions{})
	require.NoError(t, err)

	summary, err := engine.Merge(ctx, Batch{
		Statuses: []model.StatusRecord{note("new", "alice", "new", at)},
		Entries:  []model.PagingBucketEntry{homeEntry("new", 2)},
	}, MergeOptions{ReplaceBucket: &model.BucketRef{Account: account, Name: model.BucketHome}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Replaced)

	require.NoError(t, store.Read(ctx, func(tx *cache.Tx) error {
		entries, err := tx.Entries(account, model.BucketHome, cache.EntryQuery{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "new", entries[0].StatusKey.ID)

		// Replaced entries never take their statuses with them.
		old, err := tx.FindStatus(account, model.NewKey("old", host))
		assert.NotNil(t, old)
		return err
	}))
}

func TestMerge_SurvivesCancelledContext(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Merge(ctx, Batch{Entries: []model.PagingBucketEntry{homeEntry("n1", 1)}}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, store, &cache.DbPagingEntry{}))
}

func TestMerge_InvalidRecordRollsBack(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	ctx := context.Background()

	broken := note("n1", "alice", "x", time.Now())
	broken.Content = nil

	_, err := engine.Merge(ctx, Batch{
		Users:    []model.UserRecord{liteUser("alice", "Alice", "")},
		Statuses: []model.StatusRecord{broken},
		Entries:  []model.PagingBucketEntry{homeEntry("n1", 1)},
	}, MergeOptions{})

	var mergeErr *model.MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, StepStatuses, mergeErr.Step)

	assert.Equal(t, int64(0), countRows(t, store, &cache.DbUser{}), "users written before the failure are rolled back")
	assert.Equal(t, int64(0), countRows(t, store, &cache.DbPagingEntry{}))
}

func setupMockStore(t *testing.T) (*cache.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}
	return cache.New(gormDB, nil, zap.NewNop()), mock
}

func TestMerge_DatabaseFailureRollsBack(t *testing.T) {
	store, mock := setupMockStore(t)
	engine := NewEngine(store, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := engine.Merge(context.Background(), Batch{
		Users: []model.UserRecord{liteUser("alice", "Alice", "")},
	}, MergeOptions{})

	var mergeErr *model.MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, StepUsers, mergeErr.Step)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerge_CommitFailure(t *testing.T) {
	store, mock := setupMockStore(t)
	engine := NewEngine(store, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

	_, err := engine.Merge(context.Background(), Batch{}, MergeOptions{})

	var mergeErr *model.MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, StepCommit, mergeErr.Step)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeLookup struct {
	users []model.UserRecord
	err   error
	asked []model.MicroBlogKey
}

func (f *fakeLookup) FindUsers(keys []model.MicroBlogKey) ([]model.UserRecord, error) {
	f.asked = append(f.asked, keys...)
	return f.users, f.err
}

func TestReconcileUsers(t *testing.T) {
	t.Run("Only lite keys are looked up", func(t *testing.T) {
		lookup := &fakeLookup{}
		out, patched, err := reconcileUsers(lookup, []model.UserRecord{
			fullUser("a", "A", ""),
			liteUser("b", "B", ""),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, patched)
		assert.Len(t, out, 2)
		assert.Equal(t, []model.MicroBlogKey{model.NewKey("b", host)}, lookup.asked)
	})

	t.Run("Last lite wins without stored profile", func(t *testing.T) {
		out, _, err := reconcileUsers(&fakeLookup{}, []model.UserRecord{
			liteUser("a", "first", ""),
			liteUser("a", "second", ""),
		})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "second", out[0].Name)
	})

	t.Run("Patched stored profile wins", func(t *testing.T) {
		lookup := &fakeLookup{users: []model.UserRecord{fullUser("a", "old", "bio")}}
		out, patched, err := reconcileUsers(lookup, []model.UserRecord{liteUser("a", "new", "")})
		require.NoError(t, err)
		assert.Equal(t, 1, patched)
		require.Len(t, out, 1)
		assert.True(t, out[0].IsFull())
		assert.Equal(t, "new", out[0].Name)
	})

	t.Run("Lookup error", func(t *testing.T) {
		_, _, err := reconcileUsers(&fakeLookup{err: errors.New("boom")}, []model.UserRecord{liteUser("a", "A", "")})
		assert.Error(t, err)
	})
}
