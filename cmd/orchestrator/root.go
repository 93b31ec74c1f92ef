package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectPath string
	configPath  string
	verbose     bool
)

// NewRootCmd builds the orchestrator CLI's root command, grounded on the
// teacher's cmd.NewRootCmd persistent-flag + AddCommand composition.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Continuous development orchestrator",
		Long: `orchestrator drives a requirement from text through blueprint
generation, impact analysis, TDD execution, and regression validation,
pausing for human approval at configured checkpoints.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&projectPath, "project", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "explicit orchestrator.yaml path (default: <project>/orchestrator.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newApproveCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newResetCmd())

	return rootCmd
}

// Execute runs the root command, exiting 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveProjectPath() (string, error) {
	if projectPath != "" {
		return projectPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
