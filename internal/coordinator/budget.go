package coordinator

import (
	"fmt"
	"time"

	"github.com/devorc/orchestrator/internal/clock"
)

// BudgetReasonCode identifies why a BudgetTracker stopped permitting work.
type BudgetReasonCode string

const (
	BudgetReasonNone       BudgetReasonCode = "none"
	BudgetReasonIterations BudgetReasonCode = "iterations"
	BudgetReasonTime       BudgetReasonCode = "time"
	BudgetReasonCost       BudgetReasonCode = "cost"
)

// BudgetLimits bounds one Run call's resource consumption, per spec.md
// §11's budget-tracking supplement. Zero means unlimited.
type BudgetLimits struct {
	MaxIterations  int
	MaxTime        time.Duration
	MaxCostUSD     float64
}

// BudgetState is a BudgetTracker's accumulated consumption.
type BudgetState struct {
	Iterations   int
	TotalCostUSD float64
	StartTime    time.Time
}

// BudgetStatus is the result of a CheckBudget call.
type BudgetStatus struct {
	CanContinue bool
	Reason      string
	ReasonCode  BudgetReasonCode
}

// BudgetTracker enforces iteration/time/cost limits across a whole Run,
// grounded on the teacher's loop.BudgetTracker, generalized from one task
// list to the coordinator's entire processRequirement lifecycle and driven
// by an injected Clock instead of time.Now.
type BudgetTracker struct {
	clock  clock.Clock
	limits BudgetLimits
	state  BudgetState
}

// NewBudgetTracker builds a tracker with the given limits, ticking clk.
func NewBudgetTracker(clk clock.Clock, limits BudgetLimits) *BudgetTracker {
	return &BudgetTracker{clock: clk, limits: limits}
}

// RecordIteration records one completed task iteration and its cost.
func (bt *BudgetTracker) RecordIteration(costUSD float64) {
	if bt.state.StartTime.IsZero() {
		bt.state.StartTime = bt.clock.Now()
	}
	bt.state.Iterations++
	bt.state.TotalCostUSD += costUSD
}

// CheckBudget reports whether the run may continue.
func (bt *BudgetTracker) CheckBudget() BudgetStatus {
	if bt.limits.MaxIterations > 0 && bt.state.Iterations >= bt.limits.MaxIterations {
		return BudgetStatus{
			Reason:     fmt.Sprintf("max iteration limit reached (%d/%d)", bt.state.Iterations, bt.limits.MaxIterations),
			ReasonCode: BudgetReasonIterations,
		}
	}

	if bt.limits.MaxTime > 0 && !bt.state.StartTime.IsZero() {
		elapsed := bt.clock.Now().Sub(bt.state.StartTime)
		if elapsed >= bt.limits.MaxTime {
			return BudgetStatus{
				Reason:     fmt.Sprintf("max time limit exceeded (%s/%s)", elapsed, bt.limits.MaxTime),
				ReasonCode: BudgetReasonTime,
			}
		}
	}

	if bt.limits.MaxCostUSD > 0 && bt.state.TotalCostUSD >= bt.limits.MaxCostUSD {
		return BudgetStatus{
			Reason:     fmt.Sprintf("max cost limit exceeded ($%.2f/$%.2f)", bt.state.TotalCostUSD, bt.limits.MaxCostUSD),
			ReasonCode: BudgetReasonCost,
		}
	}

	return BudgetStatus{CanContinue: true, ReasonCode: BudgetReasonNone}
}

// State returns a copy of the tracker's current consumption.
func (bt *BudgetTracker) State() BudgetState {
	return bt.state
}
