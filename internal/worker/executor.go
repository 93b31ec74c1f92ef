package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/devorc/orchestrator/internal/boundary"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/errs"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/llm"
	"github.com/devorc/orchestrator/internal/process"
)

// Executor drives one Worker's TDD cycle for one Task, grounded on the
// teacher's loop.Controller.runIteration: an invoke-verify-retry loop, here
// split into five named phases with two explicit loop-backs.
type Executor struct {
	LLM           llm.Client
	Runner        process.Runner
	Boundary      *boundary.Checker
	Files         filestore.Store
	Clock         clock.Clock
	MaxIterations int
	Temperature   float64
}

// NewExecutor builds an Executor with MaxIterations=DefaultMaxIterations
// and Temperature=DefaultTemperature; a MaxIterations later set to zero or
// less falls back to DefaultMaxIterations.
func NewExecutor(llmClient llm.Client, runner process.Runner, checker *boundary.Checker, files filestore.Store, clk clock.Clock) *Executor {
	return &Executor{
		LLM:           llmClient,
		Runner:        runner,
		Boundary:      checker,
		Files:         files,
		Clock:         clk,
		MaxIterations: DefaultMaxIterations,
		Temperature:   DefaultTemperature,
	}
}

func (e *Executor) maxIterations() int {
	if e.MaxIterations > 0 {
		return e.MaxIterations
	}
	return DefaultMaxIterations
}

// Execute runs task's full TDD cycle under moduleID's boundary ownership.
func (e *Executor) Execute(ctx context.Context, task Task, moduleID string) (*Run, error) {
	run := &Run{TaskID: task.ID, StartedAt: e.Clock.Now()}
	cycle := &TDDCycle{Phase: PhaseWriteTest, MaxIterations: e.maxIterations()}

	testSpecPath := task.TestFilePath
	if testSpecPath == "" {
		testSpecPath = filepath.Join("tests", task.ID+"_test.go")
	}

	var testCode string
	usingPreset := len(task.AcceptanceTests) > 0

	for writeTestAttempt := 0; ; writeTestAttempt++ {
		if writeTestAttempt >= cycle.MaxIterations {
			run.Outcome = OutcomeBlocked
			run.EndedAt = e.Clock.Now()
			return run, nil
		}

		if usingPreset {
			testSpecPath = task.AcceptanceTests[0]
		} else {
			pr, err := e.writeTest(ctx, task, moduleID, testSpecPath)
			run.Phases = append(run.Phases, pr)
			run.LLMCalls += pr.LLMCalls
			if err != nil {
				return e.fail(run, err)
			}
			if pr.Err != "" {
				if pr.BoundaryViolation {
					return e.boundaryFail(run)
				}
				return e.fail(run, fmt.Errorf("write_test: %s", pr.Err))
			}
			for _, a := range pr.Artifacts {
				run.Artifacts = append(run.Artifacts, a)
			}
			if len(pr.Artifacts) > 0 {
				testCode = pr.Artifacts[0].Content
			}
		}

		cycle.Phase = PhaseRunTestRed
		redResult, err := e.runTest(ctx, task)
		if err != nil {
			return e.fail(run, err)
		}
		run.Phases = append(run.Phases, PhaseResult{Phase: PhaseRunTestRed, TestResult: &redResult})

		if !redResult.Passed {
			break // test is red as expected
		}
		// Unexpectedly green: regenerate the test, bounded by maxIterations.
		if usingPreset {
			run.Outcome = OutcomeBlocked
			run.EndedAt = e.Clock.Now()
			return run, nil
		}
	}

	var lastError string
	var codeArtifacts []Artifact
	greenPassed := false

	for iteration := 0; iteration < cycle.MaxIterations; iteration++ {
		cycle.Phase = PhaseWriteCode
		cycle.Iteration = iteration + 1

		pr, artifacts, err := e.writeCode(ctx, task, moduleID, testCode, lastError)
		run.Phases = append(run.Phases, pr)
		run.LLMCalls += pr.LLMCalls
		if err != nil {
			return e.fail(run, err)
		}
		if pr.Err != "" {
			if pr.BoundaryViolation {
				return e.boundaryFail(run)
			}
			return e.fail(run, fmt.Errorf("write_code: %s", pr.Err))
		}
		codeArtifacts = artifacts
		run.Artifacts = append(run.Artifacts, artifacts...)

		cycle.Phase = PhaseRunTestGreen
		greenResult, err := e.runTest(ctx, task)
		if err != nil {
			return e.fail(run, err)
		}
		run.Phases = append(run.Phases, PhaseResult{Phase: PhaseRunTestGreen, TestResult: &greenResult})

		if greenResult.Passed {
			greenPassed = true
			break
		}
		lastError = firstLine(greenResult.Output)
		cycle.LastError = lastError
	}

	if !greenPassed {
		run.Outcome = OutcomeTestFailed
		run.EndedAt = e.Clock.Now()
		return run, nil
	}

	cycle.Phase = PhaseRefactor
	refactorPR, refactored, err := e.refactor(ctx, task, moduleID, testCode, codeArtifacts)
	run.Phases = append(run.Phases, refactorPR)
	run.LLMCalls += refactorPR.LLMCalls
	if err != nil {
		return e.fail(run, err)
	}
	if refactorPR.Err != "" {
		if refactorPR.BoundaryViolation {
			return e.boundaryFail(run)
		}
	} else if refactored != nil {
		run.Artifacts = append(run.Artifacts, refactored...)
	}

	cycle.Phase = PhaseDone
	run.Outcome = OutcomePassed
	run.EndedAt = e.Clock.Now()
	return run, nil
}

func (e *Executor) fail(run *Run, err error) (*Run, error) {
	run.Outcome = OutcomeError
	run.EndedAt = e.Clock.Now()
	return run, err
}

// boundaryFail ends run with OutcomeBoundaryViolation and no Go error: a
// phase that exhausted its retry budget against BoundaryChecker denials
// fails the task, per spec §7, but it is not an invocation-level error.
func (e *Executor) boundaryFail(run *Run) (*Run, error) {
	run.Outcome = OutcomeBoundaryViolation
	run.EndedAt = e.Clock.Now()
	return run, nil
}

// boundaryHint turns a denied path into feedback for the next attempt's
// prompt, the "adjusted prompt" spec §7 calls for on a BoundaryViolation.
func boundaryHint(path string) string {
	return fmt.Sprintf("Your previous attempt tried to write %q, which is outside this task's assigned module boundary. Write only within the files this task owns.", path)
}

// firstDeniedPath returns the first artifact path the boundary checker
// refuses, or "" if every artifact clears it.
func (e *Executor) firstDeniedPath(moduleID string, artifacts []Artifact) string {
	for _, a := range artifacts {
		if allowed, err := e.Boundary.Check(moduleID, a.Path); err != nil || !allowed {
			return a.Path
		}
	}
	return ""
}

// writeTest asks the LLM for a failing test, retrying within the phase (like
// run_test_green's lastError loop) whenever BoundaryChecker denies the
// write, before escalating a persistent violation to the caller.
func (e *Executor) writeTest(ctx context.Context, task Task, moduleID, path string) (PhaseResult, error) {
	var hint string
	start := e.Clock.Now()
	calls := 0
	for attempt := 0; attempt < e.maxIterations(); attempt++ {
		calls++
		resp, err := e.LLM.CreateMessage(ctx, []llm.Message{
			{Role: llm.RoleUser, Content: testWriterPrompt(task, hint)},
		}, nil, testWriterSystemPrompt)
		if err != nil {
			return PhaseResult{}, fmt.Errorf("worker: test writer invocation: %w", err)
		}

		block, ok := firstFencedBlock(resp.Text())
		if !ok {
			return PhaseResult{Phase: PhaseWriteTest, Err: "no fenced code block in test writer response", LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil
		}

		if allowed, err := e.Boundary.Check(moduleID, path); err != nil || !allowed {
			hint = boundaryHint(path)
			continue
		}
		if err := e.Files.Write(path, []byte(block)); err != nil {
			return PhaseResult{}, fmt.Errorf("worker: write test spec: %w", err)
		}

		return PhaseResult{
			Phase:     PhaseWriteTest,
			Artifacts: []Artifact{{Path: path, Content: block}},
			TestSpec:  path,
			LLMCalls:  calls,
			Duration:  e.Clock.Now().Sub(start),
		}, nil
	}
	return PhaseResult{Phase: PhaseWriteTest, Err: errs.ErrBoundaryViolation.Error(), BoundaryViolation: true, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil
}

// writeCode asks the LLM for an implementation, retrying within the phase
// whenever any emitted file falls outside moduleID's boundary before
// escalating a persistent violation to the caller.
func (e *Executor) writeCode(ctx context.Context, task Task, moduleID, testCode, lastErr string) (PhaseResult, []Artifact, error) {
	hint := lastErr
	start := e.Clock.Now()
	calls := 0
	for attempt := 0; attempt < e.maxIterations(); attempt++ {
		calls++
		resp, err := e.LLM.CreateMessage(ctx, []llm.Message{
			{Role: llm.RoleUser, Content: codeWriterPrompt(task, testCode, hint)},
		}, nil, codeWriterSystemPrompt)
		if err != nil {
			return PhaseResult{}, nil, fmt.Errorf("worker: code writer invocation: %w", err)
		}

		defaultPath := defaultCodePath(task)
		artifacts := parseFileBlocks(resp.Text(), defaultPath)
		if len(artifacts) == 0 {
			return PhaseResult{Phase: PhaseWriteCode, Err: "no file blocks in code writer response", LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil, nil
		}

		if denied := e.firstDeniedPath(moduleID, artifacts); denied != "" {
			hint = boundaryHint(denied)
			continue
		}

		for _, a := range artifacts {
			if err := e.Files.Write(a.Path, []byte(a.Content)); err != nil {
				return PhaseResult{}, nil, fmt.Errorf("worker: write code artifact %s: %w", a.Path, err)
			}
		}
		return PhaseResult{Phase: PhaseWriteCode, Artifacts: artifacts, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, artifacts, nil
	}
	return PhaseResult{Phase: PhaseWriteCode, Err: errs.ErrBoundaryViolation.Error(), BoundaryViolation: true, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil, nil
}

// refactor asks the LLM to improve the passing implementation, retrying
// within the phase on boundary denials before escalating a persistent
// violation; a refactor that regresses the tests reverts instead.
func (e *Executor) refactor(ctx context.Context, task Task, moduleID, testCode string, priorArtifacts []Artifact) (PhaseResult, []Artifact, error) {
	var hint string
	start := e.Clock.Now()
	calls := 0
	for attempt := 0; attempt < e.maxIterations(); attempt++ {
		calls++
		resp, err := e.LLM.CreateMessage(ctx, []llm.Message{
			{Role: llm.RoleUser, Content: refactorPrompt(task, testCode, priorArtifacts, hint)},
		}, nil, refactorSystemPrompt)
		if err != nil {
			return PhaseResult{}, nil, fmt.Errorf("worker: refactor invocation: %w", err)
		}

		defaultPath := defaultCodePath(task)
		artifacts := parseFileBlocks(resp.Text(), defaultPath)
		if len(artifacts) == 0 {
			// No refactor proposed; keep prior artifacts as-is.
			return PhaseResult{Phase: PhaseRefactor, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil, nil
		}

		if denied := e.firstDeniedPath(moduleID, artifacts); denied != "" {
			hint = boundaryHint(denied)
			continue
		}

		for _, a := range artifacts {
			if err := e.Files.Write(a.Path, []byte(a.Content)); err != nil {
				return PhaseResult{}, nil, fmt.Errorf("worker: write refactor artifact %s: %w", a.Path, err)
			}
		}

		result, err := e.runTest(ctx, task)
		if err != nil {
			return PhaseResult{}, nil, err
		}
		if result.Passed {
			return PhaseResult{Phase: PhaseRefactor, Artifacts: artifacts, TestResult: &result, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, artifacts, nil
		}

		// Refactor regressed the tests: revert to the prior snapshot.
		for _, a := range priorArtifacts {
			_ = e.Files.Write(a.Path, []byte(a.Content))
		}
		return PhaseResult{Phase: PhaseRefactor, Err: "refactor broke tests, reverted", TestResult: &result, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil, nil
	}
	return PhaseResult{Phase: PhaseRefactor, Err: errs.ErrBoundaryViolation.Error(), BoundaryViolation: true, LLMCalls: calls, Duration: e.Clock.Now().Sub(start)}, nil, nil
}

func (e *Executor) runTest(ctx context.Context, task Task) (TestResult, error) {
	cmd := task.TestCommand
	if len(cmd) == 0 {
		return TestResult{Passed: true}, nil
	}
	res, err := e.Runner.Run(ctx, cmd)
	if err != nil {
		return TestResult{}, fmt.Errorf("worker: run test: %w", err)
	}
	return interpretTestResult(res), nil
}

func defaultCodePath(task Task) string {
	return filepath.Join("src", task.ID+".go")
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
