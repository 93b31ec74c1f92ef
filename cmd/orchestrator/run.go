package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"go.uber.org/zap"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/config"
	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/cyclereset"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/gate"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/llm"
	"github.com/devorc/orchestrator/internal/logging"
	"github.com/devorc/orchestrator/internal/orchestrator"
	"github.com/devorc/orchestrator/internal/process"
	"github.com/devorc/orchestrator/internal/reporter"
	"github.com/devorc/orchestrator/internal/state"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/telemetry"
	"github.com/devorc/orchestrator/internal/timetravel"
)

func newRunCmd() *cobra.Command {
	var llmCommand string
	var testCmd string
	var typeCheckCmd string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run <requirement text>",
		Short: "Process a requirement end to end",
		Long:  "Run ContinuousDevOrchestrator against requirement text, blocking until the run completes, pauses, or fails.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, strings.Join(args, " "), llmCommand, testCmd, typeCheckCmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&llmCommand, "llm-command", "claude", "CLI binary invoked for each model call")
	cmd.Flags().StringVar(&testCmd, "test-cmd", "go test ./...", "regression command WorkerExecutor/RegressionGate run")
	cmd.Flags().StringVar(&typeCheckCmd, "typecheck-cmd", "go vet ./...", "type-check command RegressionGate runs first")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runRun(cmd *cobra.Command, requirement, llmCommand, testCmd, typeCheckCmd, metricsAddr string) error {
	root, err := resolveProjectPath()
	if err != nil {
		return err
	}
	if err := state.Ensure(root); err != nil {
		return err
	}

	if pid, _ := state.ReadPID(root); pid != 0 {
		return fmt.Errorf("orchestrator already running in %s (pid %d)", root, pid)
	}
	if err := state.WritePID(root, os.Getpid()); err != nil {
		return err
	}
	defer func() { _ = state.RemovePID(root) }()

	logger, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadWithOverride(root, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	clk := clock.Real{}
	bus, closeBus := buildEventBus(*cfg)
	defer closeBus()

	if metricsAddr != "" {
		reg := telemetry.New()
		unsubscribe := reg.Subscribe(bus)
		defer unsubscribe()
		go serveMetrics(metricsAddr, reg, logger)
	}

	blueprints := blueprint.NewManager(blueprint.NewMemoryStore(), idgen.UUIDGenerator{}, clk, bus)
	files := filestore.NewOSStore(root)
	checkpoints := timetravel.NewManager(timetravel.NewMemoryStore(), files, idgen.UUIDGenerator{}, clk)
	trees := tasktree.NewManager(tasktree.NewMemoryStore(), checkpoints, files, idgen.UUIDGenerator{}, clk, bus)

	runner := process.NewOSRunner(root)
	runner.SetAllowedCommands(cfg.Safety.AllowedCommands)

	g := gate.New(runner, bus, gate.Config{
		EnforceTypeCheck:      cfg.Safety.EnforceTypeCheck,
		EnforceRegressionGate: cfg.Safety.EnforceRegressionGate,
		TypeCheckCommand:      splitCommand(typeCheckCmd),
		RegressionCommand:     splitCommand(testCmd),
	})

	llmClient := llm.NewSubprocessClient(llmCommand, state.LogsDirPath(root))

	execCfg := orchestrator.ExecutionConfig{
		Coordinator: coordinator.Config{
			MaxConsecutiveFailures: cfg.Safety.MaxConsecutiveFailures,
			TestCommand:            splitCommand(testCmd),
		},
		CycleReset: cyclereset.Config{},
	}

	o := orchestrator.New(blueprints, trees, g, bus, clk, llmClient, runner, files, orchestrator.NoopAnalyzer{Blueprints: blueprints}, root, *cfg, execCfg)

	// currentTreeID tracks the most recently generated tree so the control
	// file watcher and status snapshots know what to act on/report, without
	// tasktree.Manager needing a List-latest method of its own.
	var currentTreeID atomic.Value
	currentTreeID.Store("")

	statusGen := reporter.NewStatusGenerator(trees)
	snapshot := func() { writeStatusSnapshot(root, o, statusGen, treeIDOf(currentTreeID)) }
	unsubStatus := bus.Subscribe(func(eventbus.Event) { snapshot() })
	defer unsubStatus()
	snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.ErrOrStderr(), "received interrupt, stopping orchestrator...")
		o.Stop()
		cancel()
	}()

	controlDone := make(chan struct{})
	go watchControlFiles(ctx, root, o, trees, &currentTreeID, controlDone)
	defer func() { <-controlDone }()

	result, err := o.ProcessRequirement(ctx, requirement)
	if err != nil && result == nil {
		return fmt.Errorf("process requirement: %w", err)
	}
	if result != nil && result.TreeID != "" {
		currentTreeID.Store(result.TreeID)
	}

	for result != nil && result.Phase == orchestrator.PhaseAwaitingApproval {
		approver, waitErr := waitForApproval(ctx, root)
		if waitErr != nil {
			return waitErr
		}
		result, err = o.ApproveAndExecute(ctx, approver)
		if err != nil && result == nil {
			return fmt.Errorf("approve and execute: %w", err)
		}
		if result != nil && result.TreeID != "" {
			currentTreeID.Store(result.TreeID)
		}
	}

	snapshot()
	cancel()

	if result != nil && result.TreeID != "" {
		reportGen := reporter.NewReportGenerator(trees)
		rep, repErr := reportGen.GenerateReport(result.TreeID, result.Summary, len(result.CycleReviews), clk.Now())
		if repErr == nil {
			_ = state.WriteReport(root, reporter.FormatReport(rep))
		}
	}

	if result != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "final phase: %s\n", result.Phase)
		if result.FailureReason != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "failure: %s\n", result.FailureReason)
		}
	}
	return nil
}

func treeIDOf(v atomic.Value) string {
	s, _ := v.Load().(string)
	return s
}

func buildEventBus(cfg config.Config) (eventbus.Bus, func()) {
	if cfg.Phases.EventTransport != "nats" {
		return eventbus.NewInProcess(), func() {}
	}
	url := os.Getenv("ORCHESTRATOR_NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return eventbus.NewInProcess(), func() {}
	}
	return eventbus.NewNATSBus(conn, "orchestrator"), conn.Close
}

func serveMetrics(addr string, reg *telemetry.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func splitCommand(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func writeStatusSnapshot(root string, o *orchestrator.Orchestrator, gen *reporter.StatusGenerator, treeID string) {
	snapshot := struct {
		Phase string           `json:"phase"`
		Tree  *reporter.Status `json:"tree,omitempty"`
	}{Phase: string(o.Phase())}

	if treeID != "" {
		if status, err := gen.GetStatus(treeID); err == nil {
			snapshot.Tree = status
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	_ = state.WriteStatus(root, data)
}

// waitForApproval polls for an operator decision written via `approve`,
// the cross-process analogue of the teacher's state.IsPaused polling.
func waitForApproval(ctx context.Context, root string) (string, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			approver, err := state.ReadApproval(root)
			if err != nil {
				return "", err
			}
			if approver != "" {
				_ = state.ClearApproval(root)
				return approver, nil
			}
		}
	}
}

// watchControlFiles polls the .orchestrator control directory for
// pause/resume/rollback requests written by other CLI invocations and
// applies them to the live Orchestrator/TaskTreeManager.
func watchControlFiles(ctx context.Context, root string, o *orchestrator.Orchestrator, trees *tasktree.Manager, currentTreeID *atomic.Value, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	wasPaused := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			paused, err := state.IsPaused(root)
			if err == nil {
				if paused && !wasPaused {
					o.Pause()
				} else if !paused && wasPaused {
					o.Resume()
				}
				wasPaused = paused
			}

			if checkpointID, err := state.ReadRollbackRequest(root); err == nil && checkpointID != "" {
				result := applyRollback(trees, treeIDOf(*currentTreeID), checkpointID)
				_ = state.WriteRollbackResult(root, result)
				_ = state.ClearRollbackRequest(root)
			}

			if requested, err := state.ReadResetRequest(root); err == nil && requested {
				o.SignalCycleReset()
				_ = state.ClearResetRequest(root)
			}
		}
	}
}

func applyRollback(trees *tasktree.Manager, treeID, checkpointID string) string {
	if treeID == "" {
		return "error: no active tree to roll back"
	}
	if err := trees.RollbackToGlobalCheckpoint(treeID, checkpointID); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return fmt.Sprintf("ok: tree %s rolled back to checkpoint %s", treeID, checkpointID)
}
