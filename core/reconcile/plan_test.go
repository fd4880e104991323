package reconcile

import (
	"context"
	"testing"
	"time"

	"timeline-cache/core/cache"
	"timeline-cache/core/cache/cachetest"
	"timeline-cache/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seedPruneFixture stores:
//   - n1 in home, replying to n0 (reachable through the reference)
//   - n2 in no bucket (unreachable), written by carol
//   - an edge from a status that was never stored
func seedPruneFixture(t *testing.T, engine *Engine) {
	t.Helper()
	at := time.Now().UTC()
	_, err := engine.Merge(context.Background(), Batch{
		Statuses: []model.StatusRecord{
			note("n0", "alice", "root", at),
			note("n1", "bob", "reply", at),
			note("n2", "carol", "stray", at),
		},
		Users: []model.UserRecord{
			liteUser("alice", "Alice", ""),
			liteUser("bob", "Bob", ""),
			liteUser("carol", "Carol", ""),
		},
		References: []model.StatusReference{
			{Type: model.ReferenceReply, StatusKey: model.NewKey("n1", host), ReferencedStatusKey: model.NewKey("n0", host)},
			{Type: model.ReferenceReply, StatusKey: model.NewKey("ghost", host), ReferencedStatusKey: model.NewKey("n0", host)},
		},
		Entries: []model.PagingBucketEntry{homeEntry("n1", 1)},
	}, MergeOptions{})
	require.NoError(t, err)
}

func TestPlanPrune(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	seedPruneFixture(t, engine)

	plan, err := engine.PlanPrune(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Summary.Reachable)
	assert.Equal(t, 1, plan.Summary.Statuses)
	assert.Equal(t, 1, plan.Summary.References)
	assert.Equal(t, 0, plan.Summary.Users, "carol is still referenced by n2")

	actionTypes := make(map[PruneActionType][]string)
	for _, action := range plan.Actions {
		actionTypes[action.Type] = append(actionTypes[action.Type], action.Key)
	}
	assert.Equal(t, []string{model.NewKey("n2", host).String()}, actionTypes[ActionDeleteStatus])
}

func TestApplyPrune_RequiresConfirmation(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	seedPruneFixture(t, engine)
	ctx := context.Background()

	plan, err := engine.PlanPrune(ctx, account)
	require.NoError(t, err)

	for _, opts := range []PruneOptions{{}, {DryRun: true, Confirmed: true}} {
		executed, err := engine.ApplyPrune(ctx, plan, opts)
		require.NoError(t, err)
		assert.Equal(t, 0, executed)
	}
	assert.Equal(t, int64(3), countRows(t, store, &cache.DbStatus{}))
}

func TestApplyPrune_Cascades(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())
	seedPruneFixture(t, engine)
	ctx := context.Background()

	plan, executed, err := engine.PruneAndApply(ctx, account, PruneOptions{Confirmed: true})
	require.NoError(t, err)
	require.NotNil(t, plan)

	// n2, the ghost edge, and carol who only n2 pointed at.
	assert.Equal(t, 3, executed)
	assert.Equal(t, int64(2), countRows(t, store, &cache.DbStatus{}))
	assert.Equal(t, int64(1), countRows(t, store, &cache.DbStatusReference{}))
	assert.Equal(t, int64(2), countRows(t, store, &cache.DbUser{}))

	// Nothing left to prune.
	again, err := engine.PlanPrune(ctx, account)
	require.NoError(t, err)
	assert.Empty(t, again.Actions)
}

func TestApplyPrune_UnknownAction(t *testing.T) {
	store := cachetest.NewStore(t, nil)
	engine := NewEngine(store, zap.NewNop())

	_, err := engine.ApplyPrune(context.Background(), &PrunePlan{
		Account: account,
		Actions: []PruneAction{{Type: "explode", Key: "x"}},
	}, PruneOptions{Confirmed: true})
	assert.ErrorContains(t, err, "unknown prune action")
}
