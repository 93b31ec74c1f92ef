package tasktree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestTree() *TaskTree {
	root := &TaskNode{ID: "root", Status: StatusPending}
	a := &TaskNode{ID: "a", ParentID: "root", Status: StatusPending, Priority: 1, Depth: 1}
	b := &TaskNode{ID: "b", ParentID: "root", Status: StatusPending, Depth: 1, Dependencies: []string{"a"}}
	cancelledParent := &TaskNode{ID: "cp", ParentID: "root", Status: StatusCancelled, Depth: 1}
	c := &TaskNode{ID: "c", ParentID: "cp", Status: StatusPending, Depth: 2}
	cancelledParent.Children = []*TaskNode{c}
	root.Children = []*TaskNode{a, b, cancelledParent}
	return &TaskTree{ID: "t1", Root: root}
}

func TestGetExecutableTasksFiltersByDependenciesAndCancelledAncestors(t *testing.T) {
	tree := buildTestTree()
	executable := GetExecutableTasks(tree)

	ids := make([]string, 0, len(executable))
	for _, n := range executable {
		ids = append(ids, n.ID)
	}
	require.Equal(t, []string{"a"}, ids, "b waits on a, c's ancestor is cancelled")
}

func TestGetExecutableTasksOrdersByPriorityThenDepth(t *testing.T) {
	root := &TaskNode{ID: "root"}
	low := &TaskNode{ID: "low", ParentID: "root", Status: StatusPending, Priority: 1, Depth: 2}
	high := &TaskNode{ID: "high", ParentID: "root", Status: StatusPending, Priority: 5, Depth: 1}
	root.Children = []*TaskNode{low, high}
	tree := &TaskTree{Root: root}

	executable := GetExecutableTasks(tree)
	require.Equal(t, "high", executable[0].ID)
	require.Equal(t, "low", executable[1].ID)
}

func TestGetExecutableTasksIncludesTestFailedLeaves(t *testing.T) {
	root := &TaskNode{ID: "root"}
	failed := &TaskNode{ID: "f", ParentID: "root", Status: StatusTestFailed}
	root.Children = []*TaskNode{failed}
	tree := &TaskTree{Root: root}

	executable := GetExecutableTasks(tree)
	require.Len(t, executable, 1)
}
