package reconcile

import (
	"context"
	"errors"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"

	"go.uber.org/zap"
)

// Engine merges adapter batches into the cache. It is the only writer of
// statuses, users, references and bucket entries.
type Engine struct {
	store *cache.Store
	log   *zap.Logger
}

// NewEngine returns an engine writing to store.
func NewEngine(store *cache.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// Store returns the cache the engine writes to.
func (e *Engine) Store() *cache.Store { return e.store }

// Merge writes batch in a single transaction: optional bucket replacement,
// user reconciliation, statuses, references, then entries. Either every step
// commits or none does, in which case a *model.MergeError is returned.
//
// Cancelling ctx does not interrupt a merge that has started.
func (e *Engine) Merge(ctx context.Context, batch Batch, opts MergeOptions) (*Summary, error) {
	summary := &Summary{}

	err := e.store.Transaction(context.WithoutCancel(ctx), func(tx *cache.Tx) error {
		if opts.ReplaceBucket != nil {
			n, err := tx.DeleteBucket(opts.ReplaceBucket.Account, opts.ReplaceBucket.Name)
			if err != nil {
				return &model.MergeError{Step: StepReplace, Err: err}
			}
			summary.Replaced = n
		}

		users, patched, err := reconcileUsers(tx, batch.Users)
		if err != nil {
			return &model.MergeError{Step: StepUsers, Err: err}
		}
		if err := tx.UpsertUsers(users); err != nil {
			return &model.MergeError{Step: StepUsers, Err: err}
		}
		summary.Users = len(users)
		summary.Patched = patched

		if err := tx.UpsertStatuses(batch.Statuses); err != nil {
			return &model.MergeError{Step: StepStatuses, Err: err}
		}
		summary.Statuses = len(batch.Statuses)

		if err := tx.UpsertReferences(batch.References); err != nil {
			return &model.MergeError{Step: StepReferences, Err: err}
		}
		summary.References = len(batch.References)

		if err := tx.UpsertEntries(batch.Entries); err != nil {
			return &model.MergeError{Step: StepEntries, Err: err}
		}
		summary.Entries = len(batch.Entries)
		return nil
	})
	if err != nil {
		var mergeErr *model.MergeError
		if !errors.As(err, &mergeErr) {
			err = &model.MergeError{Step: StepCommit, Err: err}
		}
		e.log.Error("Merge rolled back", zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.Int("users", summary.Users),
		zap.Int("patched", summary.Patched),
		zap.Int("statuses", summary.Statuses),
		zap.Int("references", summary.References),
		zap.Int("entries", summary.Entries),
	}
	if opts.ReplaceBucket != nil {
		fields = append(fields, zap.String("replaced_bucket", opts.ReplaceBucket.String()), zap.Int64("replaced", summary.Replaced))
	}
	e.log.Debug("Merged batch", fields...)
	return summary, nil
}
