package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	require.True(t, cfg.Phases.CodebaseAnalysis)
	require.Equal(t, "in-process", cfg.Phases.EventTransport)
	require.Equal(t, DefaultMaxConsecutiveFailures, cfg.Safety.MaxConsecutiveFailures)
	require.ElementsMatch(t, []string{"go", "npm", "pytest"}, cfg.Safety.AllowedCommands)
}

func TestLoadReadsProjectFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
phases:
  cycleReset: false
safety:
  maxConsecutiveFailures: 7
modelAssignment:
  worker: custom-worker-model
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.False(t, cfg.Phases.CycleReset)
	require.Equal(t, 7, cfg.Safety.MaxConsecutiveFailures)
	require.Equal(t, "custom-worker-model", cfg.ModelAssignment.Worker)
	// untouched keys keep their defaults
	require.True(t, cfg.Phases.ImpactAnalysis)
}

func TestLoadWithOverridePrefersExplicitPath(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("safety:\n  maxConsecutiveFailures: 1\n"), 0o644))

	cfg, err := LoadWithOverride(dir, explicit)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Safety.MaxConsecutiveFailures)
}
