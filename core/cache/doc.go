// Package cache is the durable store behind the timeline engine.
//
// Four GORM tables hold everything the engine knows:
//
//   - statuses: one row per (status_key, account_key). The same post seen by two
//     accounts is stored twice, so per-account state never leaks.
//   - users: one row per user_key, holding either the lite or the full profile.
//   - status_references: directed edges between statuses (reply, retweet,
//     quote and the three notification kinds).
//   - paging_entries: the ordered membership of a status in a named bucket of an
//     account. Entries never own statuses; deleting a bucket leaves statuses alone.
//
// Platform payloads are stored as JSON (gorm.io/datatypes) next to a content_kind
// discriminator and decoded back into the sealed content variants of core/model.
//
// # Transactions
//
// All access goes through an explicit *Tx handle. Store.Transaction serializes
// writers and, once the transaction committed, publishes one notify.Event per
// touched bucket so that pagers re-read. Store.Read runs a read-only transaction,
// which gives readers an all-or-nothing snapshot of a merge.
//
//	err := store.Transaction(ctx, func(tx *cache.Tx) error {
//	    return tx.UpsertEntries(entries)
//	})
//
// # Joined reads
//
// Tx.Joined resolves statuses of an account together with their author and their
// referenced statuses, following references up to three hops.
package cache
