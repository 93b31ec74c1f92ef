package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSRunnerCapturesOutputAndExitStatus(t *testing.T) {
	r := NewOSRunner("")
	res, err := r.Run(context.Background(), []string{"echo", "hello"})
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Contains(t, res.Output, "hello")
}

func TestOSRunnerReportsFailureWithoutError(t *testing.T) {
	r := NewOSRunner("")
	res, err := r.Run(context.Background(), []string{"false"})
	require.NoError(t, err)
	require.False(t, res.Passed)
}

func TestOSRunnerRejectsDisallowedCommand(t *testing.T) {
	r := NewOSRunner("")
	r.SetAllowedCommands([]string{"go"})
	_, err := r.Run(context.Background(), []string{"rm", "-rf", "/"})
	require.Error(t, err)
}

func TestOSRunnerTruncatesLargeOutput(t *testing.T) {
	r := NewOSRunner("")
	r.SetMaxOutputSize(5)
	res, err := r.Run(context.Background(), []string{"echo", "hello world"})
	require.NoError(t, err)
	require.Contains(t, res.Output, "truncated")
}

func TestOSRunnerRejectsEmptyCommand(t *testing.T) {
	r := NewOSRunner("")
	_, err := r.Run(context.Background(), []string{})
	require.Error(t, err)
}
