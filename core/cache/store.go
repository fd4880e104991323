package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"timeline-cache/core/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrReadOnly is returned by write methods of a Tx opened with Store.Read.
var ErrReadOnly = errors.New("cache: write in read-only transaction")

// Store owns the cache database.
type Store struct {
	db  *gorm.DB
	pub notify.Publisher
	log *zap.Logger
}

// New wraps db. pub may be nil when nobody observes commits.
func New(db *gorm.DB, pub notify.Publisher, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, pub: pub, log: log}
}

// DB exposes the underlying connection for schema inspection.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates the cache tables and their indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrate cache schema: %w", err)
	}
	return nil
}

// Transaction runs fn in a write transaction. Nothing is visible to readers
// until fn returns nil and the commit succeeded; change events are published
// after the commit. Writers are serialized by the database: SQLite runs on
// a single connection with immediate write locks, the server drivers by
// their own transaction isolation.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	changes := newChangeSet()
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx, changes: changes})
	})
	if err != nil {
		return err
	}
	s.publish(changes)
	return nil
}

// Read runs fn in a read-only transaction.
func (s *Store) Read(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx, readOnly: true})
	}, &sql.TxOptions{ReadOnly: true})
}

func (s *Store) publish(c *changeSet) {
	if s.pub == nil || c.empty() {
		return
	}
	if c.shared {
		s.pub.Publish(notify.Event{Kind: notify.EventCommit})
		return
	}

	accounts := make([]string, 0, len(c.accounts))
	for account := range c.accounts {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		s.pub.Publish(notify.Event{Account: account, Kind: notify.EventCommit})
	}

	for b := range c.buckets {
		if _, ok := c.accounts[b.account]; ok {
			continue
		}
		s.pub.Publish(notify.Event{Account: b.account, Bucket: b.bucket, Kind: notify.EventCommit})
	}
	s.log.Debug("Published cache changes",
		zap.Int("accounts", len(c.accounts)),
		zap.Int("buckets", len(c.buckets)),
	)
}

type bucketRef struct {
	account string
	bucket  string
}

// changeSet records what a write transaction touched.
type changeSet struct {
	buckets  map[bucketRef]struct{}
	accounts map[string]struct{}
	// shared is set when users or references changed; those are visible
	// to every account.
	shared bool
}

func newChangeSet() *changeSet {
	return &changeSet{
		buckets:  make(map[bucketRef]struct{}),
		accounts: make(map[string]struct{}),
	}
}

func (c *changeSet) empty() bool {
	return !c.shared && len(c.accounts) == 0 && len(c.buckets) == 0
}
