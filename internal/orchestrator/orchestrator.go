package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/boundary"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/config"
	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/cyclereset"
	"github.com/devorc/orchestrator/internal/errs"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/gate"
	"github.com/devorc/orchestrator/internal/impact"
	"github.com/devorc/orchestrator/internal/llm"
	"github.com/devorc/orchestrator/internal/process"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/worker"
)

// pendingApproval is what processRequirement stashes when it stops in
// PhaseAwaitingApproval, so approveAndExecute can resume from exactly
// where it left off.
type pendingApproval struct {
	requirement     string
	baseBlueprintID string
	blueprintID     string // set once the incremental blueprint exists
	impactReport    *impact.Report
}

// runState tracks the currently executing requirement, so Pause/Resume/Stop
// can reach the live Coordinator and cancel its context.
type runState struct {
	cancel context.CancelFunc
	coord  *coordinator.Coordinator
	cr     *cyclereset.Manager
}

// Orchestrator is ContinuousDevOrchestrator: the phase machine composing
// BlueprintManager, TaskTreeManager, ImpactAnalyzer, RegressionGate,
// AgentCoordinator and CycleResetManager.
type Orchestrator struct {
	blueprints     *blueprint.Manager
	trees          *tasktree.Manager
	gate           *gate.Gate
	bus            eventbus.Bus
	clk            clock.Clock
	llm            llm.Client
	runner         process.Runner
	files          filestore.Store
	codebase       CodebaseAnalyzer
	impactAnalyzer *impact.Analyzer
	cfg            config.Config
	execCfg        ExecutionConfig
	projectPath    string

	mu              sync.Mutex
	phase           Phase
	pending         *pendingApproval
	current         *runState
	baseBlueprintID string
	stopRequested   atomic.Bool
}

// New wires an Orchestrator from its component managers and capabilities.
func New(
	blueprints *blueprint.Manager,
	trees *tasktree.Manager,
	g *gate.Gate,
	bus eventbus.Bus,
	clk clock.Clock,
	llmClient llm.Client,
	runner process.Runner,
	files filestore.Store,
	codebase CodebaseAnalyzer,
	projectPath string,
	cfg config.Config,
	execCfg ExecutionConfig,
) *Orchestrator {
	return &Orchestrator{
		blueprints:     blueprints,
		trees:          trees,
		gate:           g,
		bus:            bus,
		clk:            clk,
		llm:            llmClient,
		runner:         runner,
		files:          files,
		codebase:       codebase,
		impactAnalyzer: impact.NewAnalyzer(),
		projectPath:    projectPath,
		cfg:            cfg,
		execCfg:        execCfg,
		phase:          PhaseIdle,
	}
}

// Phase returns the orchestrator's current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.bus.Publish(eventbus.Event{Name: EventPhaseChanged, Timestamp: o.clk.Now(), Payload: map[string]any{"phase": string(p)}})
}

// ProcessRequirement drives phases idle through generating_blueprint (and
// into executing, unless a human checkpoint intervenes), per spec.md §4.10.
func (o *Orchestrator) ProcessRequirement(ctx context.Context, text string) (*Result, error) {
	o.mu.Lock()
	if o.phase != PhaseIdle && o.phase != PhaseCompleted && o.phase != PhaseFailed && o.phase != PhasePaused {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: requirement already in flight (phase %s): %w", o.phase, errs.ErrInvalidState)
	}
	o.mu.Unlock()

	o.setPhase(PhaseAnalyzingCodebase)
	base, err := o.resolveBaseBlueprint(ctx)
	if err != nil {
		return o.fail(err)
	}
	o.impactAnalyzer.Initialize(base)

	o.setPhase(PhaseAnalyzingRequirement)

	o.setPhase(PhaseGeneratingBlueprint)
	var report *impact.Report
	if o.cfg.Phases.ImpactAnalysis {
		r := o.impactAnalyzer.AnalyzeRequirement(text, base)
		report = &r
		if highRisk(r) && o.cfg.HumanCheckpoints.OnHighRisk {
			o.mu.Lock()
			o.pending = &pendingApproval{requirement: text, baseBlueprintID: base.ID, impactReport: report}
			o.mu.Unlock()
			o.setPhase(PhaseAwaitingApproval)
			o.bus.Publish(eventbus.Event{Name: EventApprovalRequired, Timestamp: o.clk.Now(), Payload: map[string]any{"reason": "high_risk_impact"}})
			return &Result{Phase: PhaseAwaitingApproval, BlueprintID: base.ID, ImpactReport: report}, nil
		}
	}

	bp, err := o.blueprints.CreateIncrementalBlueprint(base, text, impactedModuleIDs(report))
	if err != nil {
		return o.fail(err)
	}
	if bp, err = o.blueprints.SubmitForReview(bp.ID); err != nil {
		return o.fail(err)
	}

	if o.cfg.HumanCheckpoints.BeforeExecution {
		o.mu.Lock()
		o.pending = &pendingApproval{requirement: text, baseBlueprintID: base.ID, blueprintID: bp.ID, impactReport: report}
		o.mu.Unlock()
		o.setPhase(PhaseAwaitingApproval)
		o.bus.Publish(eventbus.Event{Name: EventApprovalRequired, Timestamp: o.clk.Now(), Payload: map[string]any{"reason": "before_execution", "blueprintId": bp.ID}})
		return &Result{Phase: PhaseAwaitingApproval, BlueprintID: bp.ID, ImpactReport: report}, nil
	}

	bp, err = o.blueprints.Approve(bp.ID, "system")
	if err != nil {
		return o.fail(err)
	}
	return o.executePhase(ctx, bp, report)
}

// ApproveAndExecute resumes a run stopped in PhaseAwaitingApproval, per
// spec.md §4.10 ("valid only when phase = awaiting_approval").
func (o *Orchestrator) ApproveAndExecute(ctx context.Context, approver string) (*Result, error) {
	o.mu.Lock()
	if o.phase != PhaseAwaitingApproval || o.pending == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: approveAndExecute requires phase awaiting_approval, got %s: %w", o.phase, errs.ErrInvalidState)
	}
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	bp, err := o.blueprintForPending(pending, approver)
	if err != nil {
		return o.fail(err)
	}
	return o.executePhase(ctx, bp, pending.impactReport)
}

func (o *Orchestrator) blueprintForPending(pending *pendingApproval, approver string) (*blueprint.Blueprint, error) {
	if pending.blueprintID == "" {
		base, err := o.blueprints.Get(pending.baseBlueprintID)
		if err != nil {
			return nil, err
		}
		bp, err := o.blueprints.CreateIncrementalBlueprint(base, pending.requirement, impactedModuleIDs(pending.impactReport))
		if err != nil {
			return nil, err
		}
		if bp, err = o.blueprints.SubmitForReview(bp.ID); err != nil {
			return nil, err
		}
		return o.blueprints.Approve(bp.ID, approver)
	}

	bp, err := o.blueprints.Get(pending.blueprintID)
	if err != nil {
		return nil, err
	}
	if bp.Status == blueprint.StatusInReview {
		return o.blueprints.Approve(bp.ID, approver)
	}
	return bp, nil
}

func (o *Orchestrator) resolveBaseBlueprint(ctx context.Context) (*blueprint.Blueprint, error) {
	if o.cfg.Phases.CodebaseAnalysis {
		return o.codebase.AnalyzeReverse(ctx, o.projectPath)
	}

	o.mu.Lock()
	id := o.baseBlueprintID
	o.mu.Unlock()
	if id != "" {
		return o.blueprints.Get(id)
	}
	return o.blueprints.Create(o.projectPath, "baseline", o.projectPath)
}

// executePhase runs phases executing through completed/failed/paused,
// looping back through cycle_review whenever CycleResetManager triggers,
// per spec.md §4.10's "(cycle_review ↺ executing)*".
func (o *Orchestrator) executePhase(ctx context.Context, bp *blueprint.Blueprint, report *impact.Report) (*Result, error) {
	o.setPhase(PhaseExecuting)

	tree, err := o.trees.GenerateFromBlueprint(bp)
	if err != nil {
		return o.fail(err)
	}
	if _, err := o.blueprints.StartExecution(bp.ID, tree.ID); err != nil {
		return o.fail(err)
	}

	policy := boundary.Policy{
		ProjectRoot:    o.projectPath,
		Modules:        moduleRoots(bp.Modules),
		ForbiddenPaths: o.cfg.Safety.ForbiddenPaths,
	}
	var checker *boundary.Checker
	if report != nil {
		checker = o.impactAnalyzer.CreateBoundaryValidator(report.SafetyBoundary, policy)
	} else {
		checker = boundary.New(policy)
	}
	exec := worker.NewExecutor(o.llm, o.runner, checker, o.files, o.clk)
	executorFor := func(*tasktree.TaskNode) *worker.Executor { return exec }

	coordCfg := o.execCfg.Coordinator
	if coordCfg.MaxConsecutiveFailures <= 0 {
		coordCfg.MaxConsecutiveFailures = o.cfg.Safety.MaxConsecutiveFailures
	}
	if coordCfg.Budget.MaxIterations <= 0 {
		coordCfg.Budget.MaxIterations = config.DefaultMaxIterationsPerTask
	}
	if coordCfg.Budget.MaxTime <= 0 {
		coordCfg.Budget.MaxTime = time.Duration(config.DefaultMaxMinutesPerTask) * time.Minute
	}
	coord := coordinator.New(o.trees, o.gate, o.bus, o.clk, coordCfg, executorFor)
	cr := cyclereset.NewManager(o.trees, tree.ID, o.execCfg.CycleReset, o.clk)
	coord.SetCycleReset(cr)

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.current = &runState{cancel: cancel, coord: coord, cr: cr}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
		cancel()
	}()

	summary, reviews, err := o.runWithCycleReset(runCtx, coord, cr, tree.ID)
	if err != nil {
		return o.fail(err)
	}

	if o.stopRequested.CompareAndSwap(true, false) {
		o.setPhase(PhaseIdle)
		return &Result{Phase: PhaseIdle, BlueprintID: bp.ID, TreeID: tree.ID, ImpactReport: report, Summary: summary, CycleReviews: reviews}, nil
	}

	o.setPhase(PhaseValidating)

	result := &Result{BlueprintID: bp.ID, TreeID: tree.ID, ImpactReport: report, Summary: summary, CycleReviews: reviews}
	switch summary.Outcome {
	case coordinator.OutcomeCompleted:
		if _, err := o.blueprints.Complete(bp.ID); err != nil {
			return o.fail(err)
		}
		o.mu.Lock()
		o.baseBlueprintID = bp.ID
		o.mu.Unlock()
		o.setPhase(PhaseCompleted)
	case coordinator.OutcomePaused, coordinator.OutcomeBudgetExceeded:
		o.setPhase(PhasePaused)
	default:
		o.setPhase(PhaseFailed)
		o.bus.Publish(eventbus.Event{Name: EventFlowFailed, Timestamp: o.clk.Now(), Payload: map[string]any{"blueprintId": bp.ID, "treeId": tree.ID}})
	}
	result.Phase = o.Phase()
	return result, nil
}

// runWithCycleReset runs coord to completion, restarting it from a fresh
// cycle_review whenever CycleResetManager observes a trigger mid-run.
func (o *Orchestrator) runWithCycleReset(ctx context.Context, coord *coordinator.Coordinator, cr *cyclereset.Manager, treeID string) (coordinator.Summary, []*cyclereset.ReviewResult, error) {
	if !o.cfg.Phases.CycleReset {
		summary, err := coord.Run(ctx, treeID)
		return summary, nil, err
	}

	interval := o.execCfg.CycleReset.WithDefaults().CheckInterval
	var reviews []*cyclereset.ReviewResult

	for {
		childCtx, cancelChild := context.WithCancel(ctx)
		done := make(chan struct{})
		go watchCycleReset(childCtx, done, cr, interval, cancelChild)

		summary, err := coord.Run(childCtx, treeID)
		close(done)
		cancelChild()
		if err != nil {
			return summary, reviews, err
		}
		if summary.Outcome != coordinator.OutcomePaused {
			return summary, reviews, nil
		}
		if ctx.Err() != nil {
			return summary, reviews, nil // caller cancelled (Stop); don't treat as a cycle trigger
		}

		status := cr.Check()
		if !status.Triggered {
			return summary, reviews, nil // a genuine coordinator-level pause, not a cycle reset
		}

		o.setPhase(PhaseCycleReview)
		review, err := cr.MaybeReset(true)
		if err != nil {
			return summary, reviews, err
		}
		reviews = append(reviews, review)
		o.bus.Publish(eventbus.Event{Name: EventCycleResetTriggered, Timestamp: o.clk.Now(), Payload: map[string]any{"treeId": treeID, "trigger": string(review.Trigger)}})
		o.setPhase(PhaseExecuting)
	}
}

func watchCycleReset(ctx context.Context, done <-chan struct{}, cr *cyclereset.Manager, interval time.Duration, cancel context.CancelFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cr.Check().Triggered {
				cancel()
				return
			}
		}
	}
}

// Pause pauses the in-flight Coordinator, if one is running.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur != nil {
		cur.coord.Pause()
	}
}

// Resume clears a pause on the in-flight Coordinator, if one is running.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur != nil {
		cur.coord.Resume()
	}
}

// SignalCycleReset records a human-initiated reset request against the
// in-flight run's CycleResetManager, if one is running: the next periodic
// trigger check (spec.md §4.8's TriggerHumanSignal) picks it up and the
// run loops back through cycle_review. A no-op when idle.
func (o *Orchestrator) SignalCycleReset() {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur != nil {
		cur.cr.SignalHuman()
	}
}

// Stop records a stop request and cancels the in-flight run's context: the
// coordinator's main loop returns at its next tick, gate and LLM commands
// running under that context are cancelled, and executePhase settles in
// idle. It does not pause the coordinator, and it does not change or remove
// the run's boundary checker or gate. A no-op when idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return
	}
	o.stopRequested.Store(true)
	cur.cancel()
}

func (o *Orchestrator) fail(err error) (*Result, error) {
	o.setPhase(PhaseFailed)
	o.bus.Publish(eventbus.Event{Name: EventFlowFailed, Timestamp: o.clk.Now(), Payload: map[string]any{"error": err.Error()}})
	return &Result{Phase: PhaseFailed, FailureReason: err.Error()}, err
}

func highRisk(r impact.Report) bool {
	return r.OverallRiskLevel == impact.RiskHigh || r.OverallRiskLevel == impact.RiskCritical
}

func impactedModuleIDs(report *impact.Report) []string {
	if report == nil {
		return nil
	}
	var ids []string
	for _, mi := range report.PerModule {
		if mi.ChangeKind != impact.ChangeNone {
			ids = append(ids, mi.ModuleID)
		}
	}
	return ids
}

func moduleRoots(modules []blueprint.Module) []boundary.ModuleRoot {
	roots := make([]boundary.ModuleRoot, 0, len(modules))
	for _, m := range modules {
		roots = append(roots, boundary.ModuleRoot{ModuleID: m.ID, RootPath: m.RootPath, ModuleName: m.Name})
	}
	return roots
}
