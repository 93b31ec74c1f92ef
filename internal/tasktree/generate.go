package tasktree

import (
	"fmt"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/idgen"
)

// GenerateFromBlueprint builds a TaskTree from an approved blueprint: one
// parent task per module, one child task per responsibility or interface,
// and one task per BusinessProcess step, each depending on the previous
// step's task to preserve step order. Ties break on insertion order
// (stable), matching the teacher's selector package's deterministic
// ordering discipline.
func GenerateFromBlueprint(bp *blueprint.Blueprint, ids idgen.Generator) (*TaskTree, error) {
	root := &TaskNode{
		ID:       ids.NewID(),
		Name:     bp.Name,
		Status:   StatusPending,
		Depth:    0,
		Priority: 0,
	}

	for _, mod := range bp.Modules {
		moduleTask := &TaskNode{
			ID:                ids.NewID(),
			ParentID:          root.ID,
			Name:              mod.Name,
			Description:       mod.Description,
			Status:            StatusPending,
			Depth:             1,
			BlueprintModuleID: mod.ID,
		}
		root.Children = append(root.Children, moduleTask)

		for _, resp := range mod.Responsibilities {
			moduleTask.Children = append(moduleTask.Children, &TaskNode{
				ID:                ids.NewID(),
				ParentID:          moduleTask.ID,
				Name:              fmt.Sprintf("%s: %s", mod.Name, resp),
				Description:       resp,
				Status:            StatusPending,
				Depth:             2,
				BlueprintModuleID: mod.ID,
			})
		}
		for _, iface := range mod.Interfaces {
			moduleTask.Children = append(moduleTask.Children, &TaskNode{
				ID:                ids.NewID(),
				ParentID:          moduleTask.ID,
				Name:              fmt.Sprintf("%s: interface %s", mod.Name, iface.ID),
				Description:       fmt.Sprintf("%s interface (%s/%s)", iface.ID, iface.Direction, iface.Kind),
				Status:            StatusPending,
				Depth:             2,
				BlueprintModuleID: mod.ID,
			})
		}
	}

	for _, proc := range bp.Processes {
		var previousTaskID string
		for _, step := range proc.Steps {
			task := &TaskNode{
				ID:          ids.NewID(),
				ParentID:    root.ID,
				Name:        fmt.Sprintf("%s step %d: %s", proc.Name, step.Order, step.Name),
				Description: step.Description,
				Status:      StatusPending,
				Depth:       1,
			}
			if previousTaskID != "" {
				task.Dependencies = []string{previousTaskID}
			}
			root.Children = append(root.Children, task)
			previousTaskID = task.ID
		}
	}

	tree := &TaskTree{
		ID:          ids.NewID(),
		BlueprintID: bp.ID,
		Root:        root,
	}
	tree.Stats = computeStats(tree.Root)
	return tree, nil
}

func computeStats(root *TaskNode) Stats {
	var stats Stats
	walk(root, func(n *TaskNode) {
		if isLeaf(n) {
			stats.Total++
			switch n.Status {
			case StatusPassed, StatusApproved:
				stats.Passed++
			case StatusTestFailed, StatusRejected:
				stats.Failed++
			case StatusCancelled:
				stats.Cancelled++
			}
		}
	})
	return stats
}

func isLeaf(n *TaskNode) bool { return len(n.Children) == 0 }

// walk visits every node in root's subtree, including root, in
// depth-first, children-in-order fashion.
func walk(root *TaskNode, visit func(*TaskNode)) {
	visit(root)
	for _, child := range root.Children {
		walk(child, visit)
	}
}
