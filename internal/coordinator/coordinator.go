package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/cyclereset"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/gate"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/worker"
)

// ExecutorFor resolves the Executor a claimed task should run on, typically
// keyed by the task's BlueprintModuleID to pick a model hint or sandboxed
// FileStore per module.
type ExecutorFor func(task *tasktree.TaskNode) *worker.Executor

// Coordinator is the AgentCoordinator: it polls TaskTreeManager for
// executable leaves, runs each through a worker.Executor, and submits
// completed work to RegressionGate. Grounded on the teacher's
// loop.Controller.RunLoop polling/dispatch loop.
type Coordinator struct {
	tree        *tasktree.Manager
	gate        *gate.Gate
	bus         eventbus.Bus
	clock       clock.Clock
	cfg         Config
	executorFor ExecutorFor

	mu                  sync.Mutex
	retryCount          map[string]int
	consecutiveFailures int
	paused              bool
	budget              *BudgetTracker
	cycleReset          *cyclereset.Manager
}

// SetCycleReset attaches the CycleResetManager watching this Coordinator's
// tree, so runTask can feed it task outcomes and LLM turn counts (spec.md
// §4.8's "consecutive task failures"/"message-budget exceeded" triggers).
// Optional: a nil cycleReset (the zero value) is a no-op.
func (c *Coordinator) SetCycleReset(cr *cyclereset.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycleReset = cr
}

// New builds a Coordinator. cfg is completed with defaults via
// Config.WithDefaults.
func New(tree *tasktree.Manager, g *gate.Gate, bus eventbus.Bus, clk clock.Clock, cfg Config, executorFor ExecutorFor) *Coordinator {
	cfg = cfg.WithDefaults()
	return &Coordinator{
		tree:        tree,
		gate:        g,
		bus:         bus,
		clock:       clk,
		cfg:         cfg,
		executorFor: executorFor,
		retryCount:  make(map[string]int),
		budget:      NewBudgetTracker(clk, cfg.Budget),
	}
}

// Pause marks the coordinator paused; Run returns at its next tick.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume clears a pause set by Pause or by exceeding MaxConsecutiveFailures.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.consecutiveFailures = 0
}

func (c *Coordinator) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Run drains treeID's executable tasks through the worker pool until the
// tree is exhausted, the coordinator is paused, or ctx is cancelled. The
// coordinator owns cancellation: stopMainLoop (ctx cancellation) signals
// workers, which finish their current phase then halt, per spec.md §4.7.
func (c *Coordinator) Run(ctx context.Context, treeID string) (Summary, error) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	// A buffered channel still gates admission per tick (errgroup's SetLimit
	// blocks the caller when full, which would stall the ticker select
	// below); the group itself owns the goroutine fleet and its join, per
	// the teacher's golang.org/x/sync worker-pool convention.
	sem := make(chan struct{}, c.cfg.PoolSize)
	var active int32
	g, _ := errgroup.WithContext(context.Background())

	var mu sync.Mutex
	summary := Summary{}

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			summary.Outcome = OutcomePaused
			return summary, nil
		case <-ticker.C:
		}

		if c.isPaused() {
			_ = g.Wait()
			summary.Outcome = OutcomePaused
			return summary, nil
		}

		if status := c.budget.CheckBudget(); !status.CanContinue {
			_ = g.Wait()
			summary.Outcome = OutcomeBudgetExceeded
			summary.Budget = c.budget.State()
			c.bus.Publish(eventbus.Event{Name: EventHumanInterventionRequired, Timestamp: c.clock.Now(), Payload: map[string]any{"treeId": treeID, "reason": status.Reason}})
			return summary, nil
		}

		executable, err := c.tree.GetExecutableTasks(treeID)
		if err != nil {
			_ = g.Wait()
			return summary, fmt.Errorf("coordinator: get executable tasks: %w", err)
		}

		if len(executable) == 0 && atomic.LoadInt32(&active) == 0 {
			_ = g.Wait()
			summary.Outcome = c.finalOutcome(treeID)
			summary.Budget = c.budget.State()
			return summary, nil
		}

		for _, task := range executable {
			select {
			case sem <- struct{}{}:
			default:
				continue // pool is full this tick
			}

			// Claim synchronously before handing off to a goroutine, so the
			// next tick's GetExecutableTasks call never sees this task
			// still pending and dispatches it twice.
			if err := c.tree.MarkStatus(treeID, task.ID, tasktree.StatusTestWriting); err != nil {
				<-sem
				continue
			}

			atomic.AddInt32(&active, 1)
			task := task
			g.Go(func() error {
				defer atomic.AddInt32(&active, -1)
				defer func() { <-sem }()
				c.runTask(ctx, treeID, task, &mu, &summary)
				return nil
			})
		}
	}
}

func (c *Coordinator) finalOutcome(treeID string) Outcome {
	t, err := c.tree.Get(treeID)
	if err != nil {
		return OutcomeBlocked
	}
	if t.Stats.Passed+t.Stats.Cancelled >= t.Stats.Total {
		return OutcomeCompleted
	}
	return OutcomeBlocked
}

func (c *Coordinator) runTask(ctx context.Context, treeID string, task *tasktree.TaskNode, mu *sync.Mutex, summary *Summary) {
	c.bus.Publish(eventbus.Event{Name: EventTaskStarted, Timestamp: c.clock.Now(), Payload: map[string]any{"taskId": task.ID, "treeId": treeID}})

	exec := c.executorFor(task)
	run, err := exec.Execute(ctx, c.toWorkerTask(task), task.BlueprintModuleID)

	mu.Lock()
	summary.IterationsRun++
	mu.Unlock()
	c.budget.RecordIteration(0)
	c.recordCycleResetMessages(run)

	if err != nil || run.Outcome != worker.OutcomePassed {
		c.recordCycleResetOutcome(false)
		c.handleFailure(treeID, task, mu, summary)
		return
	}

	sub := gate.Submission{TaskID: task.ID, TreeID: treeID, ChangedFiles: artifactPaths(run.Artifacts)}
	result, err := c.gate.Validate(ctx, sub)
	if err != nil || !result.Passed {
		c.recordCycleResetOutcome(false)
		c.handleFailure(treeID, task, mu, summary)
		return
	}

	_ = c.tree.MarkStatus(treeID, task.ID, tasktree.StatusPassed)
	c.bus.Publish(eventbus.Event{Name: EventTaskCompleted, Timestamp: c.clock.Now(), Payload: map[string]any{"taskId": task.ID, "treeId": treeID}})
	c.recordCycleResetOutcome(true)

	mu.Lock()
	summary.CompletedTasks = append(summary.CompletedTasks, task.ID)
	c.consecutiveFailures = 0
	mu.Unlock()
}

// recordCycleResetOutcome feeds a just-finished task's pass/fail into the
// attached CycleResetManager, if any (spec.md §4.8's consecutive-failures
// trigger).
func (c *Coordinator) recordCycleResetOutcome(passed bool) {
	c.mu.Lock()
	cr := c.cycleReset
	c.mu.Unlock()
	if cr != nil {
		cr.RecordTaskOutcome(passed)
	}
}

// recordCycleResetMessages feeds run's LLM turn count into the attached
// CycleResetManager, if any (spec.md §4.8's message-budget trigger).
func (c *Coordinator) recordCycleResetMessages(run *worker.Run) {
	if run == nil {
		return
	}
	c.mu.Lock()
	cr := c.cycleReset
	c.mu.Unlock()
	if cr != nil {
		cr.RecordMessages(run.LLMCalls)
	}
}

func (c *Coordinator) handleFailure(treeID string, task *tasktree.TaskNode, mu *sync.Mutex, summary *Summary) {
	c.mu.Lock()
	c.retryCount[task.ID]++
	attempts := c.retryCount[task.ID]
	c.consecutiveFailures++
	exceeded := c.consecutiveFailures >= c.cfg.MaxConsecutiveFailures
	if exceeded {
		c.paused = true
	}
	c.mu.Unlock()

	if attempts <= c.cfg.MaxRetries {
		_ = c.tree.MarkStatus(treeID, task.ID, tasktree.StatusPending)
	} else {
		_ = c.tree.MarkStatus(treeID, task.ID, tasktree.StatusTestFailed)
	}

	c.bus.Publish(eventbus.Event{Name: EventTaskFailed, Timestamp: c.clock.Now(), Payload: map[string]any{"taskId": task.ID, "treeId": treeID, "attempt": attempts}})

	mu.Lock()
	summary.FailedTasks = append(summary.FailedTasks, task.ID)
	mu.Unlock()

	if exceeded {
		c.bus.Publish(eventbus.Event{Name: EventHumanInterventionRequired, Timestamp: c.clock.Now(), Payload: map[string]any{"treeId": treeID, "reason": "max consecutive failures exceeded"}})
	}
}

func (c *Coordinator) toWorkerTask(t *tasktree.TaskNode) worker.Task {
	return worker.Task{
		ID:                t.ID,
		Name:              t.Name,
		Description:       t.Description,
		BlueprintModuleID: t.BlueprintModuleID,
		AcceptanceTests:   t.AcceptanceTests,
		TestFilePath:      t.TestSpec,
		TestCommand:       c.cfg.TestCommand,
	}
}

func artifactPaths(artifacts []worker.Artifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}
