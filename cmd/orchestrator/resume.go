package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			if err := state.SetPaused(root, false); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "resume requested")
			return err
		},
	}
}
