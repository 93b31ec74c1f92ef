package orchestrator

import (
	"context"

	"github.com/devorc/orchestrator/internal/blueprint"
)

// CodebaseAnalyzer produces the "reverse Blueprint" of an existing project:
// a best-effort reconstruction of its modules, used as the base an
// incremental blueprint is layered onto. New capability interface — the
// teacher always starts from a hand-authored task list, never from a
// scanned codebase.
type CodebaseAnalyzer interface {
	AnalyzeReverse(ctx context.Context, projectPath string) (*blueprint.Blueprint, error)
}

// NoopAnalyzer returns an empty draft blueprint naming projectPath, for
// callers that have no real codebase scanner wired (phases.codebaseAnalysis
// still runs through BlueprintManager either way; this just skips scanning).
type NoopAnalyzer struct {
	Blueprints *blueprint.Manager
}

// AnalyzeReverse creates a fresh, moduleless draft blueprint for projectPath.
func (a NoopAnalyzer) AnalyzeReverse(_ context.Context, projectPath string) (*blueprint.Blueprint, error) {
	return a.Blueprints.Create(projectPath, "reverse-engineered baseline", projectPath)
}
