package tasktree

// FindTask searches root's subtree for a node with the given id, returning
// nil if absent.
func FindTask(root *TaskNode, id string) *TaskNode {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindTask(child, id); found != nil {
			return found
		}
	}
	return nil
}

// findParent returns the parent of the node with id, or nil if id is the
// root or not found.
func findParent(root *TaskNode, id string) *TaskNode {
	for _, child := range root.Children {
		if child.ID == id {
			return root
		}
		if found := findParent(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ancestors returns the chain of ancestors of id, root-first, excluding
// the node itself.
func ancestors(root *TaskNode, id string) []*TaskNode {
	var path []*TaskNode
	var walkPath func(node *TaskNode) bool
	walkPath = func(node *TaskNode) bool {
		for _, child := range node.Children {
			if child.ID == id {
				path = append(path, node)
				return true
			}
			path = append(path, node)
			if walkPath(child) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	walkPath(root)
	return path
}

// allNodes returns every node in root's subtree, depth-first.
func allNodes(root *TaskNode) []*TaskNode {
	var nodes []*TaskNode
	walk(root, func(n *TaskNode) { nodes = append(nodes, n) })
	return nodes
}

// AllNodes returns every node in tree's subtree, depth-first. Exported for
// components outside this package (e.g. CycleResetManager's review
// summaries) that need to enumerate task state without duplicating the walk.
func AllNodes(tree *TaskTree) []*TaskNode {
	if tree == nil {
		return nil
	}
	return allNodes(tree.Root)
}
