// Package worker implements WorkerExecutor (spec §4.5): the five-phase TDD
// state machine that drives one leaf task from write_test through refactor.
// Grounded directly on the teacher's internal/loop/controller.go runIteration
// method, which drives one linear "invoke -> verify -> retry -> commit" flow;
// here that flow splits into five named phases with two explicit loop-backs
// (an unexpectedly-green test regenerates; a still-red test iterates code).
package worker

import "time"

// Phase identifies one step of the TDD cycle.
type Phase string

const (
	PhaseWriteTest    Phase = "write_test"
	PhaseRunTestRed   Phase = "run_test_red"
	PhaseWriteCode    Phase = "write_code"
	PhaseRunTestGreen Phase = "run_test_green"
	PhaseRefactor     Phase = "refactor"
	PhaseDone         Phase = "done"
)

// Status is a Worker's lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusClaiming   Status = "claiming"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// DefaultMaxIterations bounds both the write_test loop-back and the
// write_code/run_test_green retry loop.
const DefaultMaxIterations = 5

// DefaultTemperature is the value NewExecutor stores in
// Executor.Temperature. llm.Client.CreateMessage takes no sampling
// parameter, so the value is not passed to the model.
const DefaultTemperature = 0.3

// TDDCycle tracks one worker's progress through the phase machine.
type TDDCycle struct {
	Phase         Phase
	Iteration     int
	MaxIterations int
	LastError     string
}

// Artifact is one file the worker wrote or modified during a phase.
type Artifact struct {
	Path    string
	Content string
}

// PhaseResult is the outcome of running one phase.
type PhaseResult struct {
	Phase Phase
	Artifacts []Artifact
	TestSpec  string
	TestResult *TestResult
	Err        string
	// BoundaryViolation marks an Err that was produced by the phase
	// exhausting its retry budget on BoundaryChecker denials (spec §7:
	// "Fails the phase, not the worker; worker may retry with adjusted
	// prompt; persistent violations fail the task") rather than some
	// other phase failure such as an unparsable LLM response.
	BoundaryViolation bool
	// LLMCalls counts how many LLM invocations this phase made, including
	// any in-phase boundary-violation retries.
	LLMCalls int
	Duration time.Duration
}

// TestResult is the parsed outcome of a test command invocation.
type TestResult struct {
	Passed   bool
	Output   string
	Duration time.Duration
}

// Task is the minimal task-level context WorkerExecutor needs; the
// coordinator supplies this from a tasktree.TaskNode.
type Task struct {
	ID               string
	Name             string
	Description      string
	BlueprintModuleID string
	TestCommand      []string
	AcceptanceTests  []string
	TestFilePath     string
}

// Run is the full record of one Worker's attempt at a Task, returned to the
// caller (shaped after loop/record.go's IterationRecord). It is not written
// to any log or store.
type Run struct {
	TaskID    string
	Outcome   Outcome
	Phases    []PhaseResult
	Artifacts []Artifact
	StartedAt time.Time
	EndedAt   time.Time
	// LLMCalls counts every LLM invocation made across all phases and
	// their in-phase boundary-violation retries, fed into
	// CycleResetManager.RecordMessages by the coordinator (spec.md §4.8's
	// message-budget trigger).
	LLMCalls int
}

// Outcome classifies how a Run ended.
type Outcome string

const (
	OutcomePassed     Outcome = "passed"
	OutcomeTestFailed Outcome = "test_failed"
	OutcomeBlocked    Outcome = "blocked"
	OutcomeError      Outcome = "error"
	// OutcomeBoundaryViolation marks a task that failed because a phase
	// exhausted its retries against BoundaryChecker denials (spec §7/§8
	// scenario S6: "the write is refused ... the task iterates or
	// escalates"), distinct from OutcomeError's hard invocation failures.
	OutcomeBoundaryViolation Outcome = "boundary_violation"
)
