// Package reporter generates human-readable status and end-of-run reports
// over a TaskTree, grounded on the teacher's internal/reporter package
// (StatusGenerator/ReportGenerator), generalized from a flat parent-task id
// lookup to tasktree.Manager's tree/node model.
package reporter

import (
	"fmt"
	"strings"

	"github.com/devorc/orchestrator/internal/tasktree"
)

// TaskCounts tallies a tree's nodes by lifecycle bucket.
type TaskCounts struct {
	Total     int
	Completed int
	Ready     int
	Blocked   int
	Failed    int
	Cancelled int
}

// Status is a point-in-time snapshot of one tree's progress.
type Status struct {
	TreeID      string
	BlueprintID string
	Counts      TaskCounts
	NextTasks   []*tasktree.TaskNode
}

// StatusGenerator builds Status snapshots from a tasktree.Manager.
type StatusGenerator struct {
	trees *tasktree.Manager
}

// NewStatusGenerator builds a StatusGenerator over trees.
func NewStatusGenerator(trees *tasktree.Manager) *StatusGenerator {
	return &StatusGenerator{trees: trees}
}

// GetStatus summarizes treeID's current state.
func (g *StatusGenerator) GetStatus(treeID string) (*Status, error) {
	tree, err := g.trees.Get(treeID)
	if err != nil {
		return nil, fmt.Errorf("reporter: get tree: %w", err)
	}

	status := &Status{TreeID: tree.ID, BlueprintID: tree.BlueprintID}

	for _, n := range leafNodes(tree) {
		status.Counts.Total++
		switch n.Status {
		case tasktree.StatusPassed, tasktree.StatusApproved:
			status.Counts.Completed++
		case tasktree.StatusBlocked:
			status.Counts.Blocked++
		case tasktree.StatusTestFailed, tasktree.StatusRejected:
			status.Counts.Failed++
		case tasktree.StatusCancelled:
			status.Counts.Cancelled++
		}
	}

	next, err := g.trees.GetExecutableTasks(treeID)
	if err == nil {
		status.Counts.Ready = len(next)
		status.NextTasks = next
	}

	return status, nil
}

// leafNodes returns tree's executable-unit nodes: those with no children,
// matching the leaf convention tree.Stats itself is computed from.
func leafNodes(tree *tasktree.TaskTree) []*tasktree.TaskNode {
	var leaves []*tasktree.TaskNode
	for _, n := range tasktree.AllNodes(tree) {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// FormatStatus renders status for CLI display.
func FormatStatus(status *Status) string {
	var sb strings.Builder

	sb.WriteString("## Status\n\n")
	_, _ = fmt.Fprintf(&sb, "Tree: %s\n", status.TreeID)
	_, _ = fmt.Fprintf(&sb, "Blueprint: %s\n\n", status.BlueprintID)

	sb.WriteString("### Task Counts\n")
	_, _ = fmt.Fprintf(&sb, "Total: %d\n", status.Counts.Total)
	_, _ = fmt.Fprintf(&sb, "Completed: %d\n", status.Counts.Completed)
	_, _ = fmt.Fprintf(&sb, "Ready: %d\n", status.Counts.Ready)
	_, _ = fmt.Fprintf(&sb, "Blocked: %d\n", status.Counts.Blocked)
	_, _ = fmt.Fprintf(&sb, "Failed: %d\n", status.Counts.Failed)
	_, _ = fmt.Fprintf(&sb, "Cancelled: %d\n", status.Counts.Cancelled)
	sb.WriteString("\n")

	sb.WriteString("### Next Tasks\n")
	if len(status.NextTasks) == 0 {
		sb.WriteString("none\n")
	} else {
		for _, t := range status.NextTasks {
			_, _ = fmt.Fprintf(&sb, "- %s (%s)\n", t.ID, t.Name)
		}
	}

	return sb.String()
}
