// Package reconcile merges normalized platform data into the cache.
//
// Adapters turn platform responses into a Batch of statuses, users, references
// and bucket entries. The Engine writes a Batch in one cache transaction, in a
// fixed order:
//
//  1. Replace: when MergeOptions.ReplaceBucket is set, the bucket's entries are
//     deleted first, so a refresh of a replace-mode timeline swaps its contents
//     atomically.
//  2. Users: incoming users are reconciled against stored ones. A stored full
//     profile is never downgraded by the lite profile embedded in a post; instead
//     the lite display fields (name, avatar, emoji table) are copied into it.
//  3. Statuses: upserted by (status_key, account_key), last write wins.
//  4. References: edges are inserted once; identical edges are ignored.
//  5. Entries: upserted by (account, bucket, status); a repeated entry only has its
//     sort id updated, so re-merging a page never duplicates a status in a bucket.
//
// Any failure rolls the whole transaction back and surfaces as *model.MergeError
// naming the failed step. Merges run detached from the caller's cancellation.
//
// # Prune
//
// Merges only ever add. PlanPrune finds the statuses of an account that no bucket
// reaches (directly or through references), dangling references and orphan users;
// ApplyPrune deletes them once confirmed. The split mirrors a dry-run/--yes flow:
//
//	plan, err := engine.PlanPrune(ctx, account)
//	executed, err := engine.ApplyPrune(ctx, plan, reconcile.PruneOptions{Confirmed: yes})
package reconcile
