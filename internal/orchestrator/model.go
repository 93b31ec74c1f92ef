// Package orchestrator implements ContinuousDevOrchestrator (spec §4.10):
// the top-level phase machine that composes BlueprintManager, TaskTreeManager,
// ImpactAnalyzer, RegressionGate, AgentCoordinator and CycleResetManager
// through their capability interfaces to drive one requirement from text to
// a completed task tree. Grounded on the teacher's cmd/root.go composition
// root plus internal/loop/controller.go's RunLoop entry point, generalized
// from a single CLI command's run into the explicit phase machine below.
package orchestrator

import (
	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/cyclereset"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/impact"
)

// Phase is the orchestrator's position in its top-level state machine.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseAnalyzingCodebase   Phase = "analyzing_codebase"
	PhaseAnalyzingRequirement Phase = "analyzing_requirement"
	PhaseGeneratingBlueprint Phase = "generating_blueprint"
	PhaseAwaitingApproval    Phase = "awaiting_approval"
	PhaseExecuting           Phase = "executing"
	PhaseValidating          Phase = "validating"
	PhaseCycleReview         Phase = "cycle_review"
	PhaseCompleted           Phase = "completed"
	PhaseFailed              Phase = "failed"
	PhasePaused              Phase = "paused"
)

// Event names published by Orchestrator, per spec.md §9's event stream list.
const (
	EventPhaseChanged        eventbus.Name = "phase_changed"
	EventApprovalRequired    eventbus.Name = "approval_required"
	EventFlowFailed          eventbus.Name = "flow_failed"
	EventCycleResetTriggered eventbus.Name = "cycle_reset_triggered"
)

// ExecutionConfig carries the execution-tuning knobs spec.md §6's
// configuration table leaves to the caller rather than orchestrator.yaml
// (pool sizing, test commands, cycle-reset thresholds) — the teacher's
// cmd/root.go similarly wires flags the config file never names (--cwd,
// --model).
type ExecutionConfig struct {
	Coordinator coordinator.Config
	CycleReset  cyclereset.Config
}

// Result is what processRequirement/approveAndExecute return: the phase the
// orchestrator settled in, plus whichever identifiers and reports were
// produced along the way.
type Result struct {
	Phase         Phase
	BlueprintID   string
	TreeID        string
	ImpactReport  *impact.Report
	Summary       coordinator.Summary
	CycleReviews  []*cyclereset.ReviewResult
	FailureReason string
}

// DefaultCycleCheckInterval mirrors cyclereset.DefaultCheckInterval; kept
// here so callers constructing an ExecutionConfig don't need to reach into
// the cyclereset package just for this constant.
const DefaultCycleCheckInterval = cyclereset.DefaultCheckInterval
