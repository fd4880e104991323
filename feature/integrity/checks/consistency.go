package checks

import (
	"context"
	"fmt"
	"sort"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"
	"timeline-cache/core/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConsistencyReport describes rows that break the cache's invariants.
type ConsistencyReport struct {
	Healthy bool             `json:"healthy"`
	Counts  map[string]int64 `json:"counts"`
	// DanglingReferences are edge ids whose source status is gone.
	DanglingReferences []string `json:"dangling_references"`
	// OrphanUsers are user keys no status points at. They are reported,
	// not unhealthy: profiles may be cached on their own.
	OrphanUsers []string `json:"orphan_users"`
	// EntriesWithoutStatus counts bucket entries whose status row is missing
	// for the entry's account.
	EntriesWithoutStatus int64 `json:"entries_without_status"`
	// UnknownKinds lists content kinds no decoder exists for.
	UnknownKinds []string `json:"unknown_kinds"`
	// FlagMismatches lists user content kinds stored with the wrong full flag.
	FlagMismatches []string `json:"flag_mismatches"`
}

// FixReport lists what FixConsistency removed.
type FixReport struct {
	References int64 `json:"references"`
	Users      int64 `json:"users"`
}

type kindCount struct {
	kind  string
	full  bool
	total int64
}

// CheckConsistency inspects the stored rows. The queries run one after the
// other; SQLite allows a single connection, so nothing here may overlap.
func CheckConsistency(ctx context.Context, store *cache.Store) (*ConsistencyReport, error) {
	db := store.DB().WithContext(ctx)
	report := &ConsistencyReport{
		Counts:             make(map[string]int64),
		DanglingReferences: []string{},
		OrphanUsers:        []string{},
		UnknownKinds:       []string{},
		FlagMismatches:     []string{},
	}

	for _, table := range []string{"users", "statuses", "status_references", "paging_entries"} {
		n, err := count(db, "SELECT COUNT(*) AS total FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		report.Counts[table] = n
	}

	n, err := count(db, `SELECT COUNT(*) AS total FROM paging_entries e
		WHERE NOT EXISTS (SELECT 1 FROM statuses s WHERE s.status_key = e.status_key AND s.account_key = e.account_key)`)
	if err != nil {
		return nil, fmt.Errorf("count entries without status: %w", err)
	}
	report.EntriesWithoutStatus = n

	statusKinds, err := kinds(db, "SELECT content_kind, COUNT(*) AS total FROM statuses GROUP BY content_kind")
	if err != nil {
		return nil, fmt.Errorf("group status kinds: %w", err)
	}
	for _, k := range statusKinds {
		if _, err := model.DecodeStatusContent(model.ContentKind(k.kind), []byte("{}")); err != nil {
			report.UnknownKinds = append(report.UnknownKinds, "statuses:"+k.kind)
		}
	}

	full := db.Statement.Quote("full")
	userKinds, err := kinds(db, fmt.Sprintf(
		"SELECT content_kind, %s AS is_full, COUNT(*) AS total FROM users GROUP BY content_kind, %s", full, full))
	if err != nil {
		return nil, fmt.Errorf("group user kinds: %w", err)
	}
	for _, k := range userKinds {
		content, err := model.DecodeUserContent(model.ContentKind(k.kind), []byte("{}"))
		if err != nil {
			report.UnknownKinds = append(report.UnknownKinds, "users:"+k.kind)
			continue
		}
		if content.Full() != k.full {
			report.FlagMismatches = append(report.FlagMismatches, fmt.Sprintf("%s full=%t (%d rows)", k.kind, k.full, k.total))
		}
	}

	err = store.Read(ctx, func(tx *cache.Tx) error {
		refs, err := tx.DanglingReferences()
		if err != nil {
			return err
		}
		for _, r := range refs {
			report.DanglingReferences = append(report.DanglingReferences, r.ID)
		}
		users, err := tx.OrphanUsers()
		if err != nil {
			return err
		}
		report.OrphanUsers = append(report.OrphanUsers, users...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(report.UnknownKinds)
	sort.Strings(report.FlagMismatches)
	report.Healthy = len(report.DanglingReferences) == 0 &&
		report.EntriesWithoutStatus == 0 &&
		len(report.UnknownKinds) == 0 &&
		len(report.FlagMismatches) == 0
	return report, nil
}

// FixConsistency removes dangling references and, when users is set,
// orphan users, in one transaction.
func FixConsistency(ctx context.Context, store *cache.Store, users bool, logger *zap.Logger) (*FixReport, error) {
	fixed := &FixReport{}
	err := store.Transaction(ctx, func(tx *cache.Tx) error {
		refs, err := tx.DanglingReferences()
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(refs))
		for _, r := range refs {
			ids = append(ids, r.ID)
		}
		if fixed.References, err = tx.DeleteReferences(ids); err != nil {
			return err
		}
		if !users {
			return nil
		}
		orphans, err := tx.OrphanUsers()
		if err != nil {
			return err
		}
		fixed.Users, err = tx.DeleteUsers(orphans)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Repaired cache rows",
		zap.Int64("references", fixed.References),
		zap.Int64("users", fixed.Users),
	)
	return fixed, nil
}

func count(db *gorm.DB, query string) (int64, error) {
	var rows []map[string]any
	if err := db.Raw(query).Scan(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return utils.Int64(utils.Column(rows[0], "total")), nil
}

func kinds(db *gorm.DB, query string) ([]kindCount, error) {
	var rows []map[string]any
	if err := db.Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kindCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, kindCount{
			kind:  utils.String(utils.Column(row, "content_kind")),
			full:  utils.Bool(utils.Column(row, "is_full")),
			total: utils.Int64(utils.Column(row, "total")),
		})
	}
	return out, nil
}
