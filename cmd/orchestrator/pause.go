package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause a running orchestrator before its next iteration",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			if err := state.SetPaused(root, true); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "pause requested")
			return err
		},
	}
}
