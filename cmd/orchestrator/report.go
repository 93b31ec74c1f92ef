package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the end-of-run report from the most recently completed orchestrator run",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			report, err := state.ReadReport(root)
			if err != nil {
				return fmt.Errorf("no report available yet in %s: %w", root, err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), report)
			return err
		},
	}
}
