// Package coordinator implements AgentCoordinator (spec §4.7): the "Queen"
// that maintains a worker pool, claims executable tasks from TaskTreeManager,
// runs each through WorkerExecutor, and submits completed work to
// RegressionGate. Grounded on the teacher's internal/loop/controller.go
// RunLoop, generalized from one worker draining one task list to a bounded
// pool draining a task tree concurrently.
package coordinator

import (
	"runtime"
	"time"

	"github.com/devorc/orchestrator/internal/eventbus"
)

// Event names published by Coordinator.
const (
	EventHumanInterventionRequired eventbus.Name = "human_intervention_required"
	EventTaskStarted               eventbus.Name = "task_started"
	EventTaskCompleted             eventbus.Name = "task_completed"
	EventTaskFailed                eventbus.Name = "task_failed"
)

// DefaultTickInterval is how often the main loop polls for executable tasks.
const DefaultTickInterval = 1500 * time.Millisecond

// DefaultMaxConsecutiveFailures triggers a pause and
// human_intervention_required once that many failures occur in a row.
const DefaultMaxConsecutiveFailures = 3

// DefaultMaxRetries bounds how many times a failed task is re-queued before
// it is left in test_failed.
const DefaultMaxRetries = 2

// Config controls pool sizing and failure handling.
type Config struct {
	PoolSize               int
	TickInterval           time.Duration
	MaxConsecutiveFailures int
	MaxRetries             int
	ModelHint              string
	// TestCommand is the default per-task test command WorkerExecutor runs
	// for run_test_red/run_test_green when the task carries no more
	// specific command of its own.
	TestCommand []string
	// Budget bounds the whole Run call's iterations/wall time/cost. Zero
	// fields are unlimited.
	Budget BudgetLimits
}

// WithDefaults fills zero fields with spec defaults, including a pool size
// of min(CPU, 4) per spec.md §4.7.
func (c Config) WithDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

func defaultPoolSize() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// Outcome classifies how a Run call ended.
type Outcome string

const (
	OutcomeCompleted             Outcome = "completed"
	OutcomeBlocked               Outcome = "blocked"
	OutcomePaused                Outcome = "paused"
	OutcomeHumanInterventionStop Outcome = "human_intervention_required"
	OutcomeBudgetExceeded        Outcome = "budget_exceeded"
)

// Summary is the result of one Run call.
type Summary struct {
	Outcome        Outcome
	CompletedTasks []string
	FailedTasks    []string
	IterationsRun  int
	Budget         BudgetState
}
