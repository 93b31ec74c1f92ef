package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <checkpoint-id>",
		Short: "Ask a running orchestrator to roll its active tree back to a global checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			if err := state.ClearRollbackResult(root); err != nil {
				return err
			}
			if err := state.WriteRollbackRequest(root, args[0]); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			result, err := waitForRollbackResult(ctx, root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result)
			return err
		},
	}
}

// waitForRollbackResult polls for the outcome the running orchestrator's
// watchControlFiles loop writes once it has applied the rollback.
func waitForRollbackResult(ctx context.Context, root string) (string, error) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			result, err := state.ReadRollbackResult(root)
			if err != nil {
				return "", err
			}
			if result != "" {
				return result, nil
			}
		}
	}
}
