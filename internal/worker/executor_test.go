package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/boundary"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/llm"
	"github.com/devorc/orchestrator/internal/process"
)

func newTestExecutor(t *testing.T, fake *llm.Fake, runner *fakeRunner) *Executor {
	t.Helper()
	store := filestore.NewOSStore(t.TempDir())
	checker := boundary.New(boundary.Policy{Modules: []boundary.ModuleRoot{{ModuleID: "mod-a", RootPath: "."}}})
	return NewExecutor(fake, runner, checker, store, clock.NewFixed(time.Unix(0, 0)))
}

func textBlock(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```"
}

func TestExecuteHappyPathPassesThroughAllFivePhases(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("go", "package foo\nfunc TestX(t *testing.T){}")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: src/foo.go\n" + textBlock("go", "package foo")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: ""}}},
	}}
	runner := &fakeRunner{results: []process.Result{
		{Passed: false}, // run_test_red: must fail
		{Passed: true},  // run_test_green: must pass
		{Passed: true},  // refactor re-run
	}}
	exec := newTestExecutor(t, fake, runner)

	run, err := exec.Execute(context.Background(), Task{ID: "t1", Name: "Add foo", TestCommand: []string{"go", "test"}}, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomePassed, run.Outcome)
	require.Len(t, fake.Calls, 3)
}

func TestExecuteReturnsTestFailedWhenGreenNeverPasses(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("go", "test code")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: src/foo.go\n" + textBlock("go", "bad code")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: src/foo.go\n" + textBlock("go", "still bad")}}},
	}}
	runner := &fakeRunner{results: []process.Result{
		{Passed: false}, // red
		{Passed: false}, // green attempt 1
		{Passed: false}, // green attempt 2
	}}
	exec := newTestExecutor(t, fake, runner)
	exec.MaxIterations = 2

	run, err := exec.Execute(context.Background(), Task{ID: "t2", Name: "Add bar", TestCommand: []string{"go", "test"}}, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeTestFailed, run.Outcome)
}

func TestExecuteBlocksWhenTestNeverGoesRed(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("go", "test code")}}},
	}}
	runner := &fakeRunner{results: []process.Result{
		{Passed: true}, // unexpectedly green, repeats
	}}
	exec := newTestExecutor(t, fake, runner)
	exec.MaxIterations = 1

	run, err := exec.Execute(context.Background(), Task{ID: "t3", Name: "Add baz", TestCommand: []string{"go", "test"}}, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, run.Outcome)
}

func TestExecuteSkipsWriteTestWhenAcceptanceTestsPreset(t *testing.T) {
	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: src/foo.go\n" + textBlock("go", "package foo")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: ""}}},
	}}
	runner := &fakeRunner{results: []process.Result{
		{Passed: false},
		{Passed: true},
		{Passed: true},
	}}
	exec := newTestExecutor(t, fake, runner)

	run, err := exec.Execute(context.Background(), Task{
		ID: "t4", Name: "Add qux", TestCommand: []string{"go", "test"},
		AcceptanceTests: []string{"tests/qux_test.go"},
	}, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomePassed, run.Outcome)
	require.Len(t, fake.Calls, 2) // no write_test call
}

func TestExecutePersistentBoundaryViolationFailsTaskNotWorker(t *testing.T) {
	// Every write_test attempt targets the same out-of-module path, so the
	// phase retries maxIterations times and then fails the task, per spec
	// §7, rather than aborting Execute with a hard error.
	responses := make([]llm.Response, 3)
	for i := range responses {
		responses[i] = llm.Response{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("go", "test code")}}}
	}
	fake := &llm.Fake{Responses: responses}
	runner := &fakeRunner{results: []process.Result{{Passed: false}}}
	store := filestore.NewOSStore(t.TempDir())
	checker := boundary.New(boundary.Policy{Modules: []boundary.ModuleRoot{{ModuleID: "mod-b", RootPath: "only-mod-b"}}})
	exec := NewExecutor(fake, runner, checker, store, clock.NewFixed(time.Unix(0, 0)))
	exec.MaxIterations = 3

	run, err := exec.Execute(context.Background(), Task{ID: "t5", Name: "Add denied", TestCommand: []string{"go", "test"}, TestFilePath: "elsewhere/test.go"}, "mod-b")
	require.NoError(t, err)
	require.Equal(t, OutcomeBoundaryViolation, run.Outcome)
	require.Len(t, fake.Calls, 3)
}

func TestExecuteRetriesBoundaryViolationThenSucceeds(t *testing.T) {
	// write_code's first attempt writes outside mod-a; the retry, fed the
	// adjusted prompt, writes inside it and the run proceeds to completion.
	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("go", "package foo\nfunc TestX(t *testing.T){}")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: other-mod/foo.go\n" + textBlock("go", "package foo")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: "### File: src/foo.go\n" + textBlock("go", "package foo")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: ""}}},
	}}
	runner := &fakeRunner{results: []process.Result{
		{Passed: false}, // run_test_red: must fail
		{Passed: true},  // run_test_green: must pass
		{Passed: true},  // refactor re-run
	}}
	store := filestore.NewOSStore(t.TempDir())
	checker := boundary.New(boundary.Policy{Modules: []boundary.ModuleRoot{{ModuleID: "mod-a", RootPath: "src"}}})
	exec := NewExecutor(fake, runner, checker, store, clock.NewFixed(time.Unix(0, 0)))

	run, err := exec.Execute(context.Background(), Task{ID: "t6", Name: "Add foo", TestCommand: []string{"go", "test"}, TestFilePath: "src/foo_test.go"}, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomePassed, run.Outcome)
	require.Len(t, fake.Calls, 4)
}
