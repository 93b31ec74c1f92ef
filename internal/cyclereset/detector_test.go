package cyclereset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/clock"
)

func TestDetectorNoTriggerInFreshCycle(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{}, clk)

	status := d.Check()
	require.False(t, status.Triggered)
	require.Equal(t, TriggerNone, status.Trigger)
}

func TestDetectorTriggersOnConsecutiveFailures(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{MaxConsecutiveFailures: 2}, clk)

	d.RecordTaskOutcome(false)
	require.False(t, d.Check().Triggered)
	d.RecordTaskOutcome(false)

	status := d.Check()
	require.True(t, status.Triggered)
	require.Equal(t, TriggerConsecutiveFailures, status.Trigger)
}

func TestDetectorResetsConsecutiveFailuresOnPass(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{MaxConsecutiveFailures: 2}, clk)

	d.RecordTaskOutcome(false)
	d.RecordTaskOutcome(true)
	d.RecordTaskOutcome(false)

	require.False(t, d.Check().Triggered)
}

func TestDetectorTriggersOnMessageBudget(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{MaxMessageBudget: 10}, clk)

	d.RecordMessages(11)

	status := d.Check()
	require.True(t, status.Triggered)
	require.Equal(t, TriggerMessageBudget, status.Trigger)
}

func TestDetectorTriggersOnWallClock(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{WallClockThreshold: 30 * time.Second}, clk)

	clk.Advance(31 * time.Second)

	status := d.Check()
	require.True(t, status.Triggered)
	require.Equal(t, TriggerWallClock, status.Trigger)
}

func TestDetectorHumanSignalTakesPriority(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{MaxMessageBudget: 1}, clk)

	d.RecordMessages(5)
	d.SignalHuman()

	status := d.Check()
	require.True(t, status.Triggered)
	require.Equal(t, TriggerHumanSignal, status.Trigger)
}

func TestDetectorResetClearsAllState(t *testing.T) {
	clk := clock.NewFixed(time.Unix(0, 0))
	d := NewDetector(Config{MaxConsecutiveFailures: 1, MaxMessageBudget: 1}, clk)

	d.RecordTaskOutcome(false)
	d.RecordMessages(5)
	d.SignalHuman()
	require.True(t, d.Check().Triggered)

	d.Reset()

	require.False(t, d.Check().Triggered)
}
