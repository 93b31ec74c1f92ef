package reporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/tasktree"
	"github.com/devorc/orchestrator/internal/timetravel"
)

func newTreeFixture(t *testing.T) (*tasktree.Manager, *tasktree.TaskTree) {
	t.Helper()
	clk := clock.NewFixed(time.Unix(0, 0))
	bus := eventbus.NewInProcess()
	files := filestore.NewOSStore(t.TempDir())

	ttStore := tasktree.NewMemoryStore()
	ttCheckpoints := timetravel.NewManager(timetravel.NewMemoryStore(), files, &idgen.Sequential{Prefix: "cp-"}, clk)
	ttMgr := tasktree.NewManager(ttStore, ttCheckpoints, files, &idgen.Sequential{Prefix: "n-"}, clk, bus)

	bp := &blueprint.Blueprint{
		ID: "bp-1",
		Modules: []blueprint.Module{
			{ID: "mod-1", Name: "core", Responsibilities: []string{"core logic"}},
			{ID: "mod-2", Name: "api", Responsibilities: []string{"http layer"}},
		},
	}
	tree, err := ttMgr.GenerateFromBlueprint(bp)
	require.NoError(t, err)
	return ttMgr, tree
}

func TestGetStatusCountsFreshTree(t *testing.T) {
	ttMgr, tree := newTreeFixture(t)

	gen := NewStatusGenerator(ttMgr)
	status, err := gen.GetStatus(tree.ID)
	require.NoError(t, err)

	require.Equal(t, tree.ID, status.TreeID)
	require.Equal(t, 2, status.Counts.Total)
	require.Equal(t, 0, status.Counts.Completed)
	require.Equal(t, 2, status.Counts.Ready)
	require.Len(t, status.NextTasks, 2)
}

func TestGetStatusReflectsCompletedTask(t *testing.T) {
	ttMgr, tree := newTreeFixture(t)
	leaf := tree.Root.Children[0].Children[0]

	require.NoError(t, ttMgr.MarkStatus(tree.ID, leaf.ID, tasktree.StatusPassed))

	gen := NewStatusGenerator(ttMgr)
	status, err := gen.GetStatus(tree.ID)
	require.NoError(t, err)

	require.Equal(t, 1, status.Counts.Completed)
	require.Equal(t, 1, status.Counts.Ready)
}

func TestFormatStatusIncludesCounts(t *testing.T) {
	ttMgr, tree := newTreeFixture(t)
	gen := NewStatusGenerator(ttMgr)
	status, err := gen.GetStatus(tree.ID)
	require.NoError(t, err)

	out := FormatStatus(status)
	require.Contains(t, out, tree.ID)
	require.Contains(t, out, "Total: 2")
	require.Contains(t, out, "Ready: 2")
}

func TestGenerateReportCategorizesTasks(t *testing.T) {
	ttMgr, tree := newTreeFixture(t)
	passed := tree.Root.Children[0].Children[0]
	failed := tree.Root.Children[1].Children[0]

	require.NoError(t, ttMgr.MarkStatus(tree.ID, passed.ID, tasktree.StatusPassed))
	require.NoError(t, ttMgr.MarkStatus(tree.ID, failed.ID, tasktree.StatusTestFailed))

	gen := NewReportGenerator(ttMgr)
	summary := coordinator.Summary{Outcome: coordinator.OutcomeBlocked, IterationsRun: 4}
	report, err := gen.GenerateReport(tree.ID, summary, 1, time.Unix(100, 0))
	require.NoError(t, err)

	require.Len(t, report.CompletedTasks, 1)
	require.Len(t, report.FailedTasks, 1)
	require.Equal(t, 4, report.IterationsRun)
	require.Equal(t, 1, report.CycleResets)
	require.Equal(t, coordinator.OutcomeBlocked, report.FinalOutcome)
}

func TestFormatReportOmitsEmptySections(t *testing.T) {
	ttMgr, tree := newTreeFixture(t)
	gen := NewReportGenerator(ttMgr)
	summary := coordinator.Summary{Outcome: coordinator.OutcomeCompleted}
	report, err := gen.GenerateReport(tree.ID, summary, 0, time.Unix(0, 0))
	require.NoError(t, err)

	out := FormatReport(report)
	require.NotContains(t, out, "## Failed Tasks")
	require.NotContains(t, out, "## Blocked Tasks")
	require.Contains(t, out, "No checkpoints recorded.")
}
