package config

// Cycle reset defaults, mirroring the teacher's gutter-detection defaults
// (internal/loop/defaults) but scoped to CycleResetManager's triggers.
const (
	DefaultMaxConsecutiveFailures = 3
	DefaultMaxFileChurnCommits    = 2
	DefaultMaxOscillations       = 2
	DefaultMaxChurnIterations    = 5
)

// Budget defaults for AgentCoordinator.
const (
	DefaultMaxIterationsPerTask = 50
	DefaultMaxMinutesPerTask    = 20
	DefaultMaxRetries           = 2
	DefaultMaxGateRetries       = 2
)
