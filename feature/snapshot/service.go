package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"
	"timeline-cache/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ErrForeignRow is returned by Import when a row belongs to another account
// than the snapshot header names.
var ErrForeignRow = errors.New("snapshot row belongs to another account")

// Info describes a stored snapshot object.
type Info struct {
	Key          string    `json:"key"`
	Account      string    `json:"account"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Result reports what an export or import moved.
type Result struct {
	Key     string `json:"key"`
	Header  Header `json:"header"`
	Counts  Counts `json:"counts"`
	Removed int    `json:"removed,omitempty"`
}

// Service writes and reads account snapshots in object storage.
type Service struct {
	client  storage.Client
	storage storage.Config
	store   *cache.Store
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

// NewService creates a new snapshot service.
func NewService(client storage.Client, storageCfg storage.Config, store *cache.Store, logger *zap.Logger, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Service{
		client:  client,
		storage: storageCfg,
		store:   store,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) accountPrefix(account model.MicroBlogKey) string {
	return s.storage.Prefix + url.PathEscape(account.String()) + "/"
}

// objectName sorts chronologically within an account prefix.
func (s *Service) objectName(account model.MicroBlogKey, at time.Time) string {
	return s.accountPrefix(account) + at.UTC().Format(timeLayout) + ".jsonl"
}

const timeLayout = "20060102T150405.000000000Z"

// ParseObjectKey splits a snapshot object key into the account and the
// export time. Keys outside prefix or not named by Export are rejected.
func ParseObjectKey(prefix, key string) (model.MicroBlogKey, time.Time, error) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return model.MicroBlogKey{}, time.Time{}, fmt.Errorf("key %q is outside %q", key, prefix)
	}
	escaped, file, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(file, "/") {
		return model.MicroBlogKey{}, time.Time{}, fmt.Errorf("key %q: want <account>/<time>.jsonl", key)
	}
	raw, err := url.PathUnescape(escaped)
	if err != nil {
		return model.MicroBlogKey{}, time.Time{}, fmt.Errorf("key %q: %w", key, err)
	}
	account, err := model.ParseKey(raw)
	if err != nil {
		return model.MicroBlogKey{}, time.Time{}, err
	}
	stamp, ok := strings.CutSuffix(file, ".jsonl")
	if !ok {
		return model.MicroBlogKey{}, time.Time{}, fmt.Errorf("key %q: not a .jsonl object", key)
	}
	at, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return model.MicroBlogKey{}, time.Time{}, fmt.Errorf("key %q: %w", key, err)
	}
	return account, at, nil
}

// Export writes every row of an account to a new snapshot object and rotates
// older ones. The rows are read in one read-only transaction.
func (s *Service) Export(ctx context.Context, account model.MicroBlogKey) (*Result, error) {
	if err := storage.EnsureBucket(ctx, s.client, s.storage.Bucket, s.storage.Region); err != nil {
		return nil, err
	}

	header := Header{Version: FormatVersion, Account: account.String(), CreatedAt: s.now().UTC()}
	var buf bytes.Buffer
	enc := newEncoder(&buf)

	err := s.store.Read(ctx, func(tx *cache.Tx) error {
		if err := enc.header(header); err != nil {
			return err
		}
		users, err := tx.UserRowsOf(account)
		if err != nil {
			return err
		}
		if err := enc.users(users); err != nil {
			return err
		}
		if err := tx.EachStatusRow(account, s.cfg.BatchSize, enc.statuses); err != nil {
			return err
		}
		refs, err := tx.ReferenceRowsOf(account)
		if err != nil {
			return err
		}
		if err := enc.references(refs); err != nil {
			return err
		}
		entries, err := tx.EntryRowsOf(account)
		if err != nil {
			return err
		}
		if err := enc.entries(entries); err != nil {
			return err
		}
		return enc.footer()
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", account, err)
	}

	key := s.objectName(account, header.CreatedAt)
	_, err = s.client.PutObject(ctx, s.storage.Bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:  "application/x-ndjson",
		UserMetadata: map[string]string{"account": account.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	res := &Result{Key: key, Header: header, Counts: enc.counts}
	s.logger.Info("Snapshot exported",
		zap.String("account", account.String()),
		zap.String("key", key),
		zap.Int("statuses", res.Counts.Statuses),
		zap.Int("entries", res.Counts.Entries),
	)

	removed, err := s.Rotate(ctx, account)
	if err != nil {
		// The export itself succeeded.
		s.logger.Warn("Snapshot rotation failed", zap.String("account", account.String()), zap.Error(err))
	}
	res.Removed = removed
	return res, nil
}

// Import restores a snapshot object. Rows are upserted in one transaction;
// rows of the account that are not in the snapshot are left alone.
func (s *Service) Import(ctx context.Context, key string) (*Result, error) {
	obj, err := s.client.GetObject(ctx, s.storage.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer obj.Close()

	data, err := decode(obj)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if err := data.checkOwnership(); err != nil {
		return nil, fmt.Errorf("import %s: %w", key, err)
	}
	// Edge and entry ids are local to a database; rows are matched on
	// their natural keys and get fresh ids when new.
	for i := range data.References {
		data.References[i].ID = ""
	}
	for i := range data.Entries {
		data.Entries[i].ID = ""
	}

	err = s.store.Transaction(ctx, func(tx *cache.Tx) error {
		if err := tx.RestoreUsers(data.Users); err != nil {
			return &model.MergeError{Step: "restore users", Err: err}
		}
		if err := tx.RestoreStatuses(data.Statuses); err != nil {
			return &model.MergeError{Step: "restore statuses", Err: err}
		}
		if err := tx.RestoreReferences(data.References); err != nil {
			return &model.MergeError{Step: "restore references", Err: err}
		}
		if err := tx.RestoreEntries(data.Entries); err != nil {
			return &model.MergeError{Step: "restore entries", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Key: key, Header: data.Header, Counts: data.counts()}
	s.logger.Info("Snapshot imported",
		zap.String("account", data.Header.Account),
		zap.String("key", key),
		zap.Int("statuses", res.Counts.Statuses),
	)
	return res, nil
}

func (c *contents) checkOwnership() error {
	for _, row := range c.Statuses {
		if row.AccountKey != c.Header.Account {
			return fmt.Errorf("status %s of %s: %w", row.StatusKey, row.AccountKey, ErrForeignRow)
		}
	}
	for _, row := range c.Entries {
		if row.AccountKey != c.Header.Account {
			return fmt.Errorf("entry %s of %s: %w", row.ID, row.AccountKey, ErrForeignRow)
		}
	}
	return nil
}

// List returns the snapshots of an account, newest first. A zero account
// lists every snapshot under the configured prefix.
func (s *Service) List(ctx context.Context, account model.MicroBlogKey) ([]Info, error) {
	prefix := s.storage.Prefix
	if !account.IsZero() {
		prefix = s.accountPrefix(account)
	}

	var out []Info
	for obj := range s.client.ListObjects(ctx, s.storage.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", obj.Err)
		}
		owner, _, err := ParseObjectKey(s.storage.Prefix, obj.Key)
		if err != nil {
			continue
		}
		out = append(out, Info{
			Key:          obj.Key,
			Account:      owner.String(),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Rotate deletes all but the newest Keep snapshots of an account.
func (s *Service) Rotate(ctx context.Context, account model.MicroBlogKey) (int, error) {
	if s.cfg.Keep <= 0 {
		return 0, nil
	}
	infos, err := s.List(ctx, account)
	if err != nil {
		return 0, err
	}
	if len(infos) <= s.cfg.Keep {
		return 0, nil
	}
	victims := infos[s.cfg.Keep:]

	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, v := range victims {
			select {
			case objectsCh <- minio.ObjectInfo{Key: v.Key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	for rErr := range s.client.RemoveObjects(ctx, s.storage.Bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err))
	}
	removed := len(victims) - len(errs)
	if len(errs) > 0 {
		return removed, errors.Join(errs...)
	}
	s.logger.Debug("Rotated snapshots", zap.String("account", account.String()), zap.Int("removed", removed))
	return removed, nil
}
