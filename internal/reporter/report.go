package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/devorc/orchestrator/internal/coordinator"
	"github.com/devorc/orchestrator/internal/tasktree"
)

// TaskSummary is one task's name/outcome for display in a Report.
type TaskSummary struct {
	ID     string
	Name   string
	Status tasktree.Status
}

// CheckpointInfo is one global checkpoint recorded during a run, the
// analogue of the teacher's per-task git commit.
type CheckpointInfo struct {
	ID   string
	Name string
}

// Report is the end-of-run summary for one requirement's execution.
type Report struct {
	TreeID          string
	BlueprintID     string
	Checkpoints     []CheckpointInfo
	CompletedTasks  []TaskSummary
	BlockedTasks    []TaskSummary
	FailedTasks     []TaskSummary
	CancelledTasks  []TaskSummary
	IterationsRun   int
	CycleResets     int
	FinalOutcome    coordinator.Outcome
	GeneratedAt     time.Time
}

// ReportGenerator builds end-of-run Reports from a tasktree.Manager and the
// coordinator.Summary/reviews a run produced.
type ReportGenerator struct {
	trees *tasktree.Manager
}

// NewReportGenerator builds a ReportGenerator over trees.
func NewReportGenerator(trees *tasktree.Manager) *ReportGenerator {
	return &ReportGenerator{trees: trees}
}

// GenerateReport builds a Report for treeID, folding in summary (the
// coordinator's last Run result) and cycleResetCount (how many times
// CycleResetManager looped the run back to executing).
func (g *ReportGenerator) GenerateReport(treeID string, summary coordinator.Summary, cycleResetCount int, now time.Time) (*Report, error) {
	tree, err := g.trees.Get(treeID)
	if err != nil {
		return nil, fmt.Errorf("reporter: get tree: %w", err)
	}

	report := &Report{
		TreeID:        tree.ID,
		BlueprintID:   tree.BlueprintID,
		IterationsRun: summary.IterationsRun,
		CycleResets:   cycleResetCount,
		FinalOutcome:  summary.Outcome,
		GeneratedAt:   now,
	}

	for _, cp := range tree.GlobalCheckpoints {
		report.Checkpoints = append(report.Checkpoints, CheckpointInfo{ID: cp})
	}

	for _, n := range leafNodes(tree) {
		ts := TaskSummary{ID: n.ID, Name: n.Name, Status: n.Status}
		switch n.Status {
		case tasktree.StatusPassed, tasktree.StatusApproved:
			report.CompletedTasks = append(report.CompletedTasks, ts)
		case tasktree.StatusBlocked:
			report.BlockedTasks = append(report.BlockedTasks, ts)
		case tasktree.StatusTestFailed, tasktree.StatusRejected:
			report.FailedTasks = append(report.FailedTasks, ts)
		case tasktree.StatusCancelled:
			report.CancelledTasks = append(report.CancelledTasks, ts)
		}
	}

	return report, nil
}

// FormatReport renders report for CLI display.
func FormatReport(report *Report) string {
	var sb strings.Builder

	sb.WriteString("# Run Report\n\n")
	_, _ = fmt.Fprintf(&sb, "**Tree:** %s\n", report.TreeID)
	_, _ = fmt.Fprintf(&sb, "**Blueprint:** %s\n", report.BlueprintID)
	_, _ = fmt.Fprintf(&sb, "**Outcome:** %s\n", report.FinalOutcome)
	_, _ = fmt.Fprintf(&sb, "**Generated:** %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	sb.WriteString("## Summary\n\n")
	_, _ = fmt.Fprintf(&sb, "- **Iterations:** %d\n", report.IterationsRun)
	_, _ = fmt.Fprintf(&sb, "- **Cycle resets:** %d\n", report.CycleResets)
	sb.WriteString("\n")

	sb.WriteString("## Checkpoints\n\n")
	if len(report.Checkpoints) == 0 {
		sb.WriteString("No checkpoints recorded.\n")
	} else {
		for _, cp := range report.Checkpoints {
			_, _ = fmt.Fprintf(&sb, "- `%s`\n", cp.ID)
		}
	}
	sb.WriteString("\n")

	writeTaskSection(&sb, "Completed Tasks", "[x]", report.CompletedTasks)
	writeTaskSection(&sb, "Blocked Tasks", "[ ]", report.BlockedTasks)
	writeTaskSection(&sb, "Failed Tasks", "[!]", report.FailedTasks)
	writeTaskSection(&sb, "Cancelled Tasks", "[-]", report.CancelledTasks)

	return sb.String()
}

func writeTaskSection(sb *strings.Builder, title, marker string, tasks []TaskSummary) {
	if len(tasks) == 0 {
		return
	}
	_, _ = fmt.Fprintf(sb, "## %s\n\n", title)
	for _, t := range tasks {
		_, _ = fmt.Fprintf(sb, "- %s %s (%s)\n", marker, t.Name, t.ID)
	}
	sb.WriteString("\n")
}
