package cyclereset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/timetravel"
)

func newManagerFixture(t *testing.T) (*tasktree.Manager, *tasktree.TaskTree) {
	t.Helper()
	store := tasktree.NewMemoryStore()
	files := filestore.NewOSStore(t.TempDir())
	ttMgr := timetravel.NewManager(timetravel.NewMemoryStore(), files, &idgen.Sequential{Prefix: "cp-"}, clock.NewFixed(time.Unix(0, 0)))
	mgr := tasktree.NewManager(store, ttMgr, files, &idgen.Sequential{Prefix: "n-"}, clock.NewFixed(time.Unix(0, 0)), eventbus.NewInProcess())

	tree := &tasktree.TaskTree{
		ID: "tree1",
		Root: &tasktree.TaskNode{
			ID:     "root",
			Status: tasktree.StatusBlocked,
			Children: []*tasktree.TaskNode{
				{ID: "child-done", Status: tasktree.StatusPassed},
				{ID: "child-open", Status: tasktree.StatusPending},
			},
		},
	}
	require.NoError(t, store.Save(tree))
	return mgr, tree
}

func TestMaybeResetReturnsNilWhenNoTriggerFired(t *testing.T) {
	mgr, tree := newManagerFixture(t)
	clk := clock.NewFixed(time.Unix(0, 0))
	m := NewManager(mgr, tree.ID, Config{}, clk)

	result, err := m.MaybeReset(false)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestMaybeResetSplitsCompletedAndRemainingTasks(t *testing.T) {
	mgr, tree := newManagerFixture(t)
	clk := clock.NewFixed(time.Unix(0, 0))
	m := NewManager(mgr, tree.ID, Config{MaxConsecutiveFailures: 1}, clk)

	m.RecordTaskOutcome(false)

	result, err := m.MaybeReset(false)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, TriggerConsecutiveFailures, result.Trigger)
	require.ElementsMatch(t, []string{"child-done"}, result.CompletedTasks)
	require.ElementsMatch(t, []string{"root", "child-open"}, result.RemainingTasks)
	require.Empty(t, result.RestartCheckpoint)
}

func TestMaybeResetClearsDetectorState(t *testing.T) {
	mgr, tree := newManagerFixture(t)
	clk := clock.NewFixed(time.Unix(0, 0))
	m := NewManager(mgr, tree.ID, Config{MaxConsecutiveFailures: 1}, clk)

	m.RecordTaskOutcome(false)
	_, err := m.MaybeReset(false)
	require.NoError(t, err)

	require.False(t, m.Check().Triggered)
}

func TestForceResetRestartsFromLatestGlobalCheckpoint(t *testing.T) {
	mgr, tree := newManagerFixture(t)
	clk := clock.NewFixed(time.Unix(0, 0))

	cp, err := mgr.CreateGlobalCheckpoint(tree.ID, "before-reset", "", map[string][]byte{"a.go": []byte("package a")})
	require.NoError(t, err)

	m := NewManager(mgr, tree.ID, Config{}, clk)
	result, err := m.ForceReset(true)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, TriggerHumanSignal, result.Trigger)
	require.Equal(t, cp.ID, result.RestartCheckpoint)
}

func TestForceResetSkipsRestartWithoutCheckpoints(t *testing.T) {
	mgr, tree := newManagerFixture(t)
	clk := clock.NewFixed(time.Unix(0, 0))
	m := NewManager(mgr, tree.ID, Config{}, clk)

	result, err := m.ForceReset(true)
	require.NoError(t, err)
	require.Empty(t, result.RestartCheckpoint)
}
