package tasktree

import "sort"

// GetExecutableTasks returns the tree's executable leaves: status ∈
// {pending, test_failed}, every dependency satisfied (passed or
// approved), and no cancelled ancestor. Results are ordered priority-desc,
// depth-asc, ties broken by id — matching the teacher's selector
// package's deterministic tie-break discipline.
func GetExecutableTasks(tree *TaskTree) []*TaskNode {
	nodes := allNodes(tree.Root)
	statusByID := make(map[string]Status, len(nodes))
	for _, n := range nodes {
		statusByID[n.ID] = n.Status
	}

	var executable []*TaskNode
	for _, n := range nodes {
		if !isLeaf(n) {
			continue
		}
		if n.Status != StatusPending && n.Status != StatusTestFailed {
			continue
		}
		if !dependenciesSatisfied(n, statusByID) {
			continue
		}
		if hasCancelledAncestor(tree.Root, n.ID) {
			continue
		}
		executable = append(executable, n)
	}

	sort.Slice(executable, func(i, j int) bool {
		a, b := executable[i], executable[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.ID < b.ID
	})
	return executable
}

func dependenciesSatisfied(n *TaskNode, statusByID map[string]Status) bool {
	for _, dep := range n.Dependencies {
		status, ok := statusByID[dep]
		if !ok || !satisfiesDependency(status) {
			return false
		}
	}
	return true
}

func hasCancelledAncestor(root *TaskNode, id string) bool {
	for _, ancestor := range ancestors(root, id) {
		if ancestor.Status == StatusCancelled {
			return true
		}
	}
	return false
}
