package reconcile

import (
	"context"
	"fmt"

	"timeline-cache/core/cache"
	"timeline-cache/core/model"

	"go.uber.org/zap"
)

// PlanPrune finds the rows of an account that no bucket can reach any more.
// It does NOT delete anything; use ApplyPrune for that.
//
// A status is reachable when a bucket entry of the account points at it, or
// when a reachable status references it. References whose source status is
// not stored for any account and users no status points at are planned too.
func (e *Engine) PlanPrune(ctx context.Context, account model.MicroBlogKey) (*PrunePlan, error) {
	plan := &PrunePlan{Account: account}

	err := e.store.Read(ctx, func(tx *cache.Tx) error {
		stored, err := tx.StatusKeysOf(account)
		if err != nil {
			return err
		}
		roots, err := tx.EntryStatusKeysOf(account)
		if err != nil {
			return err
		}
		reachable, err := reach(tx, roots)
		if err != nil {
			return err
		}

		plan.Summary.Reachable = len(reachable)
		for _, key := range stored {
			if _, ok := reachable[key]; ok {
				continue
			}
			plan.Actions = append(plan.Actions, PruneAction{
				Type:   ActionDeleteStatus,
				Key:    key,
				Reason: "not reachable from any bucket",
			})
			plan.Summary.Statuses++
		}

		dangling, err := tx.DanglingReferences()
		if err != nil {
			return err
		}
		for _, ref := range dangling {
			plan.Actions = append(plan.Actions, PruneAction{
				Type:   ActionDeleteReference,
				Key:    ref.ID,
				Reason: fmt.Sprintf("source %s is gone", ref.StatusKey),
			})
			plan.Summary.References++
		}

		orphans, err := tx.OrphanUsers()
		if err != nil {
			return err
		}
		for _, key := range orphans {
			plan.Actions = append(plan.Actions, PruneAction{
				Type:   ActionDeleteUser,
				Key:    key,
				Reason: "no status points at this user",
			})
			plan.Summary.Users++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan prune of %s: %w", account, err)
	}
	return plan, nil
}

// reach walks references from roots and returns every visited status key.
func reach(tx *cache.Tx, roots []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{}, len(roots))
	frontier := make([]string, 0, len(roots))
	for _, k := range roots {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			frontier = append(frontier, k)
		}
	}
	for len(frontier) > 0 {
		edges, err := tx.ReferenceRowsFrom(frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, edge := range edges {
			if _, ok := seen[edge.ReferencedStatusKey]; ok {
				continue
			}
			seen[edge.ReferencedStatusKey] = struct{}{}
			frontier = append(frontier, edge.ReferencedStatusKey)
		}
	}
	return seen, nil
}

// ApplyPrune executes a prune plan in one transaction.
// Requires opts.Confirmed=true and opts.DryRun=false to actually execute.
//
// Deleting statuses can leave further references dangling and users
// orphaned; those are swept in the same transaction and counted as well.
func (e *Engine) ApplyPrune(ctx context.Context, plan *PrunePlan, opts PruneOptions) (executed int, err error) {
	// Safety check: do not execute if not confirmed or dry-run
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	var (
		statusKeys []string
		refIDs     []string
		userKeys   []string
	)
	for _, action := range plan.Actions {
		switch action.Type {
		case ActionDeleteStatus:
			statusKeys = append(statusKeys, action.Key)
		case ActionDeleteReference:
			refIDs = append(refIDs, action.Key)
		case ActionDeleteUser:
			userKeys = append(userKeys, action.Key)
		default:
			return 0, fmt.Errorf("unknown prune action %q", action.Type)
		}
	}

	err = e.store.Transaction(context.WithoutCancel(ctx), func(tx *cache.Tx) error {
		n, err := tx.DeleteStatuses(plan.Account, statusKeys)
		if err != nil {
			return err
		}
		executed += int(n)

		// Sweep what the status deletion orphaned.
		dangling, err := tx.DanglingReferences()
		if err != nil {
			return err
		}
		for _, ref := range dangling {
			refIDs = append(refIDs, ref.ID)
		}
		n, err = tx.DeleteReferences(dedupe(refIDs))
		if err != nil {
			return err
		}
		executed += int(n)

		orphans, err := tx.OrphanUsers()
		if err != nil {
			return err
		}
		n, err = tx.DeleteUsers(dedupe(append(userKeys, orphans...)))
		if err != nil {
			return err
		}
		executed += int(n)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply prune of %s: %w", plan.Account, err)
	}

	e.log.Info("Pruned cache",
		zap.String("account", plan.Account.String()),
		zap.Int("deleted", executed),
	)
	return executed, nil
}

// PruneAndApply is a convenience wrapper that plans and optionally applies.
func (e *Engine) PruneAndApply(ctx context.Context, account model.MicroBlogKey, opts PruneOptions) (*PrunePlan, int, error) {
	plan, err := e.PlanPrune(ctx, account)
	if err != nil {
		return nil, 0, err
	}
	executed, err := e.ApplyPrune(ctx, plan, opts)
	return plan, executed, err
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
