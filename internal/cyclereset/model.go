// Package cyclereset implements CycleResetManager (spec §4.8): tracks
// per-cycle statistics and checks the four reset triggers (wall-clock
// threshold, consecutive task failures, message-budget exceeded, explicit
// human signal), producing a ReviewResult and optionally restarting
// execution from the most recent global checkpoint. Grounded on the
// teacher's internal/loop/gutter.go GutterDetector/GutterStatus/GutterConfig
// shape, generalized from file-churn/oscillation/repeated-failure detection
// to the four cycle-level triggers of spec.md §4.8: the detector still
// "holds rolling state, Check() returns a status, Reset() clears it".
package cyclereset

import "time"

// Trigger identifies which reset condition fired.
type Trigger string

const (
	TriggerNone                Trigger = "none"
	TriggerWallClock            Trigger = "wall_clock"
	TriggerConsecutiveFailures Trigger = "consecutive_failures"
	TriggerMessageBudget       Trigger = "message_budget"
	TriggerHumanSignal         Trigger = "human_signal"
)

// DefaultWallClockThreshold is the elapsed-time trigger, per spec.md §4.8.
const DefaultWallClockThreshold = 60 * time.Second

// DefaultCheckInterval is how often triggers are evaluated while executing.
const DefaultCheckInterval = 60 * time.Second

// DefaultMaxConsecutiveFailures triggers a reset after this many failures
// in a row within one cycle.
const DefaultMaxConsecutiveFailures = 3

// DefaultMaxMessageBudget bounds LLM turns spent in one cycle.
const DefaultMaxMessageBudget = 200

// Config controls trigger thresholds. A zero value for any numeric/duration
// field disables that trigger, except where WithDefaults is used.
type Config struct {
	WallClockThreshold     time.Duration
	MaxConsecutiveFailures int
	MaxMessageBudget       int
	CheckInterval          time.Duration
}

// WithDefaults fills zero fields with spec defaults.
func (c Config) WithDefaults() Config {
	if c.WallClockThreshold <= 0 {
		c.WallClockThreshold = DefaultWallClockThreshold
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.MaxMessageBudget <= 0 {
		c.MaxMessageBudget = DefaultMaxMessageBudget
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// Status is the outcome of a Check call.
type Status struct {
	Triggered   bool
	Trigger     Trigger
	Description string
}

// ReviewResult summarizes what landed and what remains when a cycle resets.
type ReviewResult struct {
	Trigger           Trigger
	Description       string
	CompletedTasks    []string
	RemainingTasks    []string
	Elapsed           time.Duration
	RestartCheckpoint string // empty if no restart was performed
}
