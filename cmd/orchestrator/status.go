package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last status snapshot written by a running orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			data, err := state.ReadStatus(root)
			if err != nil {
				return fmt.Errorf("no status available, is `orchestrator run` running in %s?: %w", root, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
