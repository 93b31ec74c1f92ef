package cyclereset

import (
	"fmt"
	"time"

	"github.com/devorc/orchestrator/internal/clock"
)

// Detector tracks one cycle's rolling state and evaluates the four reset
// triggers of spec.md §4.8.
type Detector struct {
	cfg   Config
	clock clock.Clock

	cycleStart          time.Time
	consecutiveFailures int
	messagesUsed        int
	humanSignaled       bool
}

// NewDetector creates a Detector with cfg completed via Config.WithDefaults,
// starting its wall-clock window at clk.Now().
func NewDetector(cfg Config, clk clock.Clock) *Detector {
	return &Detector{cfg: cfg.WithDefaults(), clock: clk, cycleStart: clk.Now()}
}

// RecordTaskOutcome updates the consecutive-failure counter.
func (d *Detector) RecordTaskOutcome(passed bool) {
	if passed {
		d.consecutiveFailures = 0
		return
	}
	d.consecutiveFailures++
}

// RecordMessages accumulates LLM turns spent this cycle.
func (d *Detector) RecordMessages(n int) {
	d.messagesUsed += n
}

// SignalHuman records an explicit human reset request; the next Check
// reports TriggerHumanSignal regardless of the other thresholds.
func (d *Detector) SignalHuman() {
	d.humanSignaled = true
}

// Check evaluates all four triggers against the detector's rolling state,
// in the fixed priority order: human signal, consecutive failures, message
// budget, wall clock.
func (d *Detector) Check() Status {
	if d.humanSignaled {
		return Status{Triggered: true, Trigger: TriggerHumanSignal, Description: "human requested a cycle reset"}
	}
	if d.consecutiveFailures >= d.cfg.MaxConsecutiveFailures {
		return Status{Triggered: true, Trigger: TriggerConsecutiveFailures, Description: fmt.Sprintf("%d consecutive task failures", d.consecutiveFailures)}
	}
	if d.messagesUsed >= d.cfg.MaxMessageBudget {
		return Status{Triggered: true, Trigger: TriggerMessageBudget, Description: fmt.Sprintf("message budget of %d exceeded (%d used)", d.cfg.MaxMessageBudget, d.messagesUsed)}
	}
	elapsed := d.clock.Now().Sub(d.cycleStart)
	if elapsed >= d.cfg.WallClockThreshold {
		return Status{Triggered: true, Trigger: TriggerWallClock, Description: fmt.Sprintf("cycle ran for %s, exceeding %s", elapsed, d.cfg.WallClockThreshold)}
	}
	return Status{Trigger: TriggerNone}
}

// Elapsed returns how long the current cycle window has been open.
func (d *Detector) Elapsed() time.Duration {
	return d.clock.Now().Sub(d.cycleStart)
}

// Reset clears all rolling state and starts a new wall-clock window.
func (d *Detector) Reset() {
	d.cycleStart = d.clock.Now()
	d.consecutiveFailures = 0
	d.messagesUsed = 0
	d.humanSignaled = false
}
