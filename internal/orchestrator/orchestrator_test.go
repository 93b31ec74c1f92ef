package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/config"
	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/gate"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/llm"
	"github.com/devorc/orchestrator/internal/process"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/timetravel"
)

type scriptedRunner struct {
	script []process.Result
	calls  int
}

func (r *scriptedRunner) Run(_ context.Context, command []string) (process.Result, error) {
	idx := r.calls
	if idx >= len(r.script) {
		idx = len(r.script) - 1
	}
	r.calls++
	res := r.script[idx]
	res.Command = command
	return res, nil
}

func textBlock(body string) string {
	return "```go\n" + body + "\n```"
}

func newFixture(t *testing.T) (*blueprint.Manager, *tasktree.Manager, *eventbus.InProcess, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(time.Unix(0, 0))
	bus := eventbus.NewInProcess()
	files := filestore.NewOSStore(t.TempDir())

	bpStore := blueprint.NewMemoryStore()
	bpMgr := blueprint.NewManager(bpStore, &idgen.Sequential{Prefix: "bp-"}, clk, bus)

	ttStore := tasktree.NewMemoryStore()
	ttCheckpoints := timetravel.NewManager(timetravel.NewMemoryStore(), files, &idgen.Sequential{Prefix: "cp-"}, clk)
	ttMgr := tasktree.NewManager(ttStore, ttCheckpoints, files, &idgen.Sequential{Prefix: "n-"}, clk, bus)

	return bpMgr, ttMgr, bus, clk
}

func baselineBlueprint(t *testing.T, bpMgr *blueprint.Manager) *blueprint.Blueprint {
	t.Helper()
	bp, err := bpMgr.Create("demo", "baseline", "/repo")
	require.NoError(t, err)
	bp, err = bpMgr.AddModule(bp.ID, blueprint.Module{
		Name:             "core",
		RootPath:         ".",
		Responsibilities: []string{"user account management"},
	})
	require.NoError(t, err)
	return bp
}

func TestProcessRequirementCompletesWithoutHumanCheckpoints(t *testing.T) {
	bpMgr, ttMgr, bus, clk := newFixture(t)
	baselineBlueprint(t, bpMgr)

	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("test code")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("package core")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: ""}}},
	}}
	runner := &scriptedRunner{script: []process.Result{{Passed: false}, {Passed: true}, {Passed: true}}}
	g := gate.New(process.NewOSRunner(""), bus, gate.Config{})
	files := filestore.NewOSStore(t.TempDir())

	cfg := config.Config{
		Phases:          config.PhasesConfig{ImpactAnalysis: true, RegressionTesting: true},
		HumanCheckpoints: config.HumanCheckpointsConfig{BeforeExecution: false, OnHighRisk: true},
		Safety:          config.SafetyConfig{MaxConsecutiveFailures: 3},
	}
	execCfg := ExecutionConfig{
		Coordinator: coordinator.Config{PoolSize: 1, TickInterval: 5 * time.Millisecond, TestCommand: []string{"go", "test"}},
	}

	o := New(bpMgr, ttMgr, g, bus, clk, fake, runner, files, nil, "/repo", cfg, execCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := o.ProcessRequirement(ctx, "extend user account management with MFA")
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, result.Phase)
	require.Equal(t, coordinator.OutcomeCompleted, result.Summary.Outcome)
	require.Equal(t, PhaseCompleted, o.Phase())
}

func TestProcessRequirementStopsForApprovalBeforeExecution(t *testing.T) {
	bpMgr, ttMgr, bus, clk := newFixture(t)
	baselineBlueprint(t, bpMgr)

	fake := &llm.Fake{}
	runner := &scriptedRunner{}
	g := gate.New(process.NewOSRunner(""), bus, gate.Config{})
	files := filestore.NewOSStore(t.TempDir())

	cfg := config.Config{
		Phases:          config.PhasesConfig{ImpactAnalysis: false},
		HumanCheckpoints: config.HumanCheckpointsConfig{BeforeExecution: true},
	}
	execCfg := ExecutionConfig{Coordinator: coordinator.Config{PoolSize: 1, TickInterval: 5 * time.Millisecond}}

	o := New(bpMgr, ttMgr, g, bus, clk, fake, runner, files, nil, "/repo", cfg, execCfg)

	var approvalRequired bool
	bus.Subscribe(func(ev eventbus.Event) {
		if ev.Name == EventApprovalRequired {
			approvalRequired = true
		}
	})

	ctx := context.Background()
	result, err := o.ProcessRequirement(ctx, "add billing export")
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingApproval, result.Phase)
	require.True(t, approvalRequired)
	require.Equal(t, PhaseAwaitingApproval, o.Phase())
}

func TestApproveAndExecuteRejectsWrongPhase(t *testing.T) {
	bpMgr, ttMgr, bus, clk := newFixture(t)
	g := gate.New(process.NewOSRunner(""), bus, gate.Config{})
	files := filestore.NewOSStore(t.TempDir())
	o := New(bpMgr, ttMgr, g, bus, clk, &llm.Fake{}, &scriptedRunner{}, files, nil, "/repo", config.Config{}, ExecutionConfig{})

	_, err := o.ApproveAndExecute(context.Background(), "human")
	require.Error(t, err)
}

func TestApproveAndExecuteResumesAndCompletes(t *testing.T) {
	bpMgr, ttMgr, bus, clk := newFixture(t)
	baselineBlueprint(t, bpMgr)

	fake := &llm.Fake{Responses: []llm.Response{
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("test code")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: textBlock("package core")}}},
		{Content: []llm.Block{{Type: llm.BlockText, Text: ""}}},
	}}
	runner := &scriptedRunner{script: []process.Result{{Passed: false}, {Passed: true}, {Passed: true}}}
	g := gate.New(process.NewOSRunner(""), bus, gate.Config{})
	files := filestore.NewOSStore(t.TempDir())

	cfg := config.Config{
		Phases:          config.PhasesConfig{ImpactAnalysis: false},
		HumanCheckpoints: config.HumanCheckpointsConfig{BeforeExecution: true},
	}
	execCfg := ExecutionConfig{Coordinator: coordinator.Config{PoolSize: 1, TickInterval: 5 * time.Millisecond, TestCommand: []string{"go", "test"}}}

	o := New(bpMgr, ttMgr, g, bus, clk, fake, runner, files, nil, "/repo", cfg, execCfg)

	stopped, err := o.ProcessRequirement(context.Background(), "add billing export")
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingApproval, stopped.Phase)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.ApproveAndExecute(ctx, "human")
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, result.Phase)
}

func TestMaxConsecutiveFailuresPausesOrchestrator(t *testing.T) {
	bpMgr, ttMgr, bus, clk := newFixture(t)
	baselineBlueprint(t, bpMgr)

	fake := &llm.Fake{} // always fails to parse -> every task errors
	runner := &scriptedRunner{script: []process.Result{{Passed: false}}}
	g := gate.New(process.NewOSRunner(""), bus, gate.Config{})
	files := filestore.NewOSStore(t.TempDir())

	cfg := config.Config{
		Phases:          config.PhasesConfig{ImpactAnalysis: false},
		HumanCheckpoints: config.HumanCheckpointsConfig{BeforeExecution: false},
	}
	execCfg := ExecutionConfig{Coordinator: coordinator.Config{PoolSize: 1, TickInterval: 5 * time.Millisecond, MaxConsecutiveFailures: 1}}

	o := New(bpMgr, ttMgr, g, bus, clk, fake, runner, files, nil, "/repo", cfg, execCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.ProcessRequirement(ctx, "add billing export")
	require.NoError(t, err)
	require.Equal(t, PhasePaused, result.Phase)
}
