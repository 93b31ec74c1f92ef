package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Ask a running orchestrator to trigger a cycle reset before its next checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			if err := state.WriteResetRequest(root); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cycle reset requested")
			return err
		},
	}
}
