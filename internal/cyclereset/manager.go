package cyclereset

import (
	"fmt"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/tasktree"
)

// Manager is the CycleResetManager: it wraps a Detector over one tree,
// and on trigger produces a ReviewResult summarizing what landed and what
// remains, optionally restarting execution from the tree's most recent
// global checkpoint.
type Manager struct {
	detector *Detector
	tree     *tasktree.Manager
	clock    clock.Clock
	treeID   string
}

// NewManager builds a Manager watching treeID, using cfg's thresholds.
func NewManager(tree *tasktree.Manager, treeID string, cfg Config, clk clock.Clock) *Manager {
	return &Manager{
		detector: NewDetector(cfg, clk),
		tree:     tree,
		clock:    clk,
		treeID:   treeID,
	}
}

// RecordTaskOutcome feeds a just-finished task's pass/fail into the
// detector's consecutive-failure counter.
func (m *Manager) RecordTaskOutcome(passed bool) { m.detector.RecordTaskOutcome(passed) }

// RecordMessages accumulates LLM turns spent this cycle.
func (m *Manager) RecordMessages(n int) { m.detector.RecordMessages(n) }

// SignalHuman records an explicit human reset request.
func (m *Manager) SignalHuman() { m.detector.SignalHuman() }

// Check reports whether any of the four triggers has fired, without
// producing a ReviewResult or restarting anything.
func (m *Manager) Check() Status { return m.detector.Check() }

// MaybeReset checks the detector and, if triggered, builds a ReviewResult
// and resets the detector's rolling state. restart controls whether the
// tree is also rolled back to its most recent global checkpoint; when
// true and no checkpoint exists, the rollback step is skipped and
// ReviewResult.RestartCheckpoint stays empty.
func (m *Manager) MaybeReset(restart bool) (*ReviewResult, error) {
	status := m.detector.Check()
	if !status.Triggered {
		return nil, nil
	}
	return m.reset(status, restart)
}

// ForceReset builds a ReviewResult unconditionally, as if TriggerHumanSignal
// had fired, and resets the detector. Used by an explicit operator request
// that doesn't want to wait for SignalHuman to be observed on the next
// Check.
func (m *Manager) ForceReset(restart bool) (*ReviewResult, error) {
	return m.reset(Status{Triggered: true, Trigger: TriggerHumanSignal, Description: "cycle reset requested"}, restart)
}

func (m *Manager) reset(status Status, restart bool) (*ReviewResult, error) {
	tree, err := m.tree.Get(m.treeID)
	if err != nil {
		return nil, fmt.Errorf("cyclereset: get tree %s: %w", m.treeID, err)
	}

	result := &ReviewResult{
		Trigger:     status.Trigger,
		Description: status.Description,
		Elapsed:     m.detector.Elapsed(),
	}
	for _, node := range tasktree.AllNodes(tree) {
		switch node.Status {
		case tasktree.StatusPassed, tasktree.StatusApproved:
			result.CompletedTasks = append(result.CompletedTasks, node.ID)
		case tasktree.StatusCancelled, tasktree.StatusRejected:
			// neither completed nor remaining work.
		default:
			result.RemainingTasks = append(result.RemainingTasks, node.ID)
		}
	}

	if restart && len(tree.GlobalCheckpoints) > 0 {
		latest := tree.GlobalCheckpoints[len(tree.GlobalCheckpoints)-1]
		if err := m.tree.RollbackToGlobalCheckpoint(m.treeID, latest); err != nil {
			return nil, fmt.Errorf("cyclereset: rollback to %s: %w", latest, err)
		}
		result.RestartCheckpoint = latest
	}

	m.detector.Reset()
	return result, nil
}
