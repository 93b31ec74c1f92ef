package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/devorc/orchestrator/internal/state"
)

func newApproveCmd() *cobra.Command {
	var approver string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a blueprint or impact report an orchestrator is awaiting review on",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProjectPath()
			if err != nil {
				return err
			}
			if approver == "" {
				approver = currentUsername()
			}
			if err := state.WriteApproval(root, approver); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "approved by %s\n", approver)
			return err
		},
	}

	cmd.Flags().StringVar(&approver, "as", "", "approver identity recorded in the tree's review history (default: OS user)")
	return cmd
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}
