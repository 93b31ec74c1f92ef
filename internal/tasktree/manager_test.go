package tasktree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/timetravel"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	files := filestore.NewOSStore(root)
	fixed := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ttIDs := &idgen.Sequential{Prefix: "cp-"}
	ttMgr := timetravel.NewManager(timetravel.NewMemoryStore(), files, ttIDs, fixed)
	return NewManager(NewMemoryStore(), ttMgr, files, &idgen.Sequential{Prefix: "n-"}, fixed, eventbus.NewInProcess())
}

func simpleTree() *TaskTree {
	root := &TaskNode{ID: "root", Status: StatusPending}
	module := &TaskNode{ID: "mod", ParentID: "root", Status: StatusPending}
	leaf1 := &TaskNode{ID: "leaf1", ParentID: "mod", Status: StatusPending}
	leaf2 := &TaskNode{ID: "leaf2", ParentID: "mod", Status: StatusPending}
	module.Children = []*TaskNode{leaf1, leaf2}
	root.Children = []*TaskNode{module}
	return &TaskTree{ID: "tree-1", Root: root}
}

func TestMarkStatusDerivesParentOnceAllChildrenPass(t *testing.T) {
	m := newTestManager(t)
	tree := simpleTree()
	require.NoError(t, m.store.Save(tree))

	require.NoError(t, m.MarkStatus("tree-1", "leaf1", StatusPassed))
	mod := FindTask(tree.Root, "mod")
	require.Equal(t, StatusBlocked, mod.Status, "one leaf still pending")

	require.NoError(t, m.MarkStatus("tree-1", "leaf2", StatusPassed))
	mod = FindTask(tree.Root, "mod")
	require.Equal(t, StatusPassed, mod.Status)
}

func TestCreateAndRollbackTaskCheckpoint(t *testing.T) {
	m := newTestManager(t)
	tree := simpleTree()
	require.NoError(t, m.store.Save(tree))
	require.NoError(t, m.MarkStatus("tree-1", "leaf1", StatusCoding))

	cp, err := m.CreateTaskCheckpoint("tree-1", "leaf1", "pre-refactor", map[string][]byte{"a.go": []byte("v1")}, nil)
	require.NoError(t, err)

	require.NoError(t, m.MarkStatus("tree-1", "leaf1", StatusTestFailed))
	require.NoError(t, m.RollbackToCheckpoint("tree-1", "leaf1", cp.ID))

	node := FindTask(tree.Root, "leaf1")
	require.Equal(t, StatusCoding, node.Status)
}

func TestGlobalCheckpointRoundTrip(t *testing.T) {
	m := newTestManager(t)
	tree := simpleTree()
	require.NoError(t, m.store.Save(tree))

	cp, err := m.CreateGlobalCheckpoint("tree-1", "stable", "", map[string][]byte{"a.go": []byte("v1")})
	require.NoError(t, err)

	require.NoError(t, m.MarkStatus("tree-1", "leaf1", StatusPassed))
	require.NoError(t, m.MarkStatus("tree-1", "leaf2", StatusPassed))
	require.Equal(t, StatusPassed, FindTask(tree.Root, "mod").Status)

	require.NoError(t, m.RollbackToGlobalCheckpoint("tree-1", cp.ID))
	require.Equal(t, StatusPending, FindTask(tree.Root, "leaf1").Status)
}
