package reconcile

import "timeline-cache/core/model"

// Batch is the normalized output of one adapter call, ready to be merged.
type Batch struct {
	Statuses   []model.StatusRecord
	Users      []model.UserRecord
	References []model.StatusReference
	Entries    []model.PagingBucketEntry
}

// Append adds the contents of other to b.
func (b *Batch) Append(other Batch) {
	b.Statuses = append(b.Statuses, other.Statuses...)
	b.Users = append(b.Users, other.Users...)
	b.References = append(b.References, other.References...)
	b.Entries = append(b.Entries, other.Entries...)
}

// IsEmpty reports whether the batch carries nothing.
func (b Batch) IsEmpty() bool {
	return len(b.Statuses) == 0 && len(b.Users) == 0 && len(b.References) == 0 && len(b.Entries) == 0
}

// MergeOptions controls a merge.
type MergeOptions struct {
	// ReplaceBucket, when set, has its entries deleted inside the merge
	// transaction before the batch is written.
	ReplaceBucket *model.BucketRef
}

// Summary reports what a merge wrote.
type Summary struct {
	// Replaced counts entries deleted by ReplaceBucket.
	Replaced int64 `json:"replaced"`
	// Users counts upserted user rows.
	Users int `json:"users"`
	// Patched counts stored full profiles refreshed from lite data.
	Patched int `json:"patched"`
	// Statuses counts upserted status rows.
	Statuses int `json:"statuses"`
	// References counts edges offered to the store.
	References int `json:"references"`
	// Entries counts upserted bucket entries.
	Entries int `json:"entries"`
}

// Merge steps, reported in MergeError.Step.
const (
	StepReplace    = "replace_bucket"
	StepUsers      = "users"
	StepStatuses   = "statuses"
	StepReferences = "references"
	StepEntries    = "entries"
	StepCommit     = "commit"
)

// PruneActionType identifies what a prune action deletes.
type PruneActionType string

const (
	// ActionDeleteStatus deletes a status no bucket of the account reaches.
	ActionDeleteStatus PruneActionType = "delete_status"
	// ActionDeleteReference deletes an edge whose source status is gone.
	ActionDeleteReference PruneActionType = "delete_reference"
	// ActionDeleteUser deletes a user no status points at.
	ActionDeleteUser PruneActionType = "delete_user"
)

// PruneAction is one planned deletion.
type PruneAction struct {
	Type   PruneActionType `json:"type"`
	Key    string          `json:"key"`
	Reason string          `json:"reason"`
}

// PruneSummary provides aggregate counts of a prune plan.
type PruneSummary struct {
	Statuses   int `json:"statuses"`
	Reachable  int `json:"reachable"`
	References int `json:"references"`
	Users      int `json:"users"`
}

// PrunePlan lists the rows of an account that can be dropped.
type PrunePlan struct {
	Account model.MicroBlogKey `json:"account"`
	Actions []PruneAction      `json:"actions"`
	Summary PruneSummary       `json:"summary"`
}

// PruneOptions guards destructive execution.
type PruneOptions struct {
	// DryRun prevents execution if true.
	DryRun bool
	// Confirmed indicates the user has confirmed deletion. If false,
	// nothing executes regardless of DryRun.
	Confirmed bool
}
