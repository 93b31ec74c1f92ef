package blueprint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/errs"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/idgen"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(), &idgen.Sequential{Prefix: "bp"}, clock.NewFixed(clock.Real{}.Now()), eventbus.NewInProcess())
}

func TestCreateStartsInDraft(t *testing.T) {
	m := newTestManager()
	bp, err := m.Create("checkout", "checkout flow", "/repo")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, bp.Status)
	require.Equal(t, "0.1.0", bp.Version)
}

func TestApprovalWorkflowHappyPath(t *testing.T) {
	m := newTestManager()
	bp, err := m.Create("checkout", "checkout flow", "/repo")
	require.NoError(t, err)

	bp, err = m.SubmitForReview(bp.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInReview, bp.Status)

	bp, err = m.Approve(bp.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, bp.Status)
	require.Equal(t, "alice", bp.ApprovedBy)

	bp, err = m.StartExecution(bp.ID, "tree-1")
	require.NoError(t, err)
	require.Equal(t, StatusExecuting, bp.Status)

	bp, err = m.Complete(bp.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, bp.Status)
}

func TestRejectRecordsReasonAndMovesToRejected(t *testing.T) {
	m := newTestManager()
	bp, err := m.Create("checkout", "", "/repo")
	require.NoError(t, err)
	bp, err = m.SubmitForReview(bp.ID)
	require.NoError(t, err)

	bp, err = m.Reject(bp.ID, "scope too broad")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, bp.Status)
	require.Equal(t, "scope too broad", bp.RejectionReason)
}

func TestIllegalTransitionFailsWithInvalidState(t *testing.T) {
	m := newTestManager()
	bp, err := m.Create("checkout", "", "/repo")
	require.NoError(t, err)

	_, err = m.Approve(bp.ID, "alice")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestCreateIncrementalBlueprintDoesNotMutateBase(t *testing.T) {
	m := newTestManager()
	base, err := m.Create("checkout", "", "/repo")
	require.NoError(t, err)
	base, err = m.AddModule(base.ID, Module{Name: "payments"})
	require.NoError(t, err)

	next, err := m.CreateIncrementalBlueprint(base, "add refund flow", nil)
	require.NoError(t, err)

	require.NotEqual(t, base.ID, next.ID)
	require.Equal(t, "0.1.1", next.Version)
	require.Len(t, base.Modules, 1, "base must be unmutated")
	require.Len(t, next.Modules, 2)
	require.Equal(t, StatusDraft, next.Status)
}

func TestCreateIncrementalBlueprintExtendsImpactedModule(t *testing.T) {
	m := newTestManager()
	base, err := m.Create("checkout", "", "/repo")
	require.NoError(t, err)
	base, err = m.AddModule(base.ID, Module{ID: "mod-pay", Name: "payments"})
	require.NoError(t, err)

	next, err := m.CreateIncrementalBlueprint(base, "add refund flow", []string{"mod-pay"})
	require.NoError(t, err)
	require.Len(t, next.Modules, 1)
	require.Contains(t, next.Modules[0].Responsibilities, "add refund flow")
}

func TestAcyclicModuleDependencyValidation(t *testing.T) {
	bp := &Blueprint{
		ID:     "b1",
		Name:   "x",
		Status: StatusDraft,
		Modules: []Module{
			{ID: "a", DependsOn: []string{"b"}},
			{ID: "b", DependsOn: []string{"a"}},
		},
	}
	err := bp.Validate()
	require.Error(t, err)
}
