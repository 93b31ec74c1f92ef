package blueprint

import (
	"fmt"

	"github.com/devorc/orchestrator/internal/errs"
)

// ErrNotFound is returned when a blueprint with the given ID does not exist.
var ErrNotFound = errs.ErrNotFound

func errRequiredField(field string) error {
	return fmt.Errorf("blueprint: %s is required: %w", field, errs.ErrInvalidState)
}

func errInvalidStatus(s Status) error {
	return fmt.Errorf("blueprint: invalid status %q: %w", s, errs.ErrInvalidState)
}

func errApprovedByRequired() error {
	return fmt.Errorf("blueprint: approvedBy is required once approved: %w", errs.ErrInvalidState)
}

// requiresApprovedBy reports whether status implies the blueprint has
// passed review and must carry an approver.
func requiresApprovedBy(s Status) bool {
	switch s {
	case StatusApproved, StatusExecuting, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// checkAcyclicModules verifies the module dependency graph has no cycle,
// via the same DFS coloring the teacher's selector.DetectCycle uses.
func checkAcyclicModules(modules []Module) error {
	byID := make(map[string]Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(modules))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				return fmt.Errorf("blueprint: module dependency cycle involving %q: %w", dep, errs.ErrInvalidState)
			case white:
				if _, ok := byID[dep]; ok {
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, m := range modules {
		if color[m.ID] == white {
			if err := visit(m.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
