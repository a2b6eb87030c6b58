package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/session"
)

// newChangeIDCmd implements `jjagent change-id <session-id>`.
func newChangeIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-id <session-id>",
		Short: "Print the change-id of a session's commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := newOrchestrator()
			changeID, found, err := o.Stack.FindAnywhere(cmd.Context(), session.NewID(args[0]))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no commit found for session %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), changeID)
			return nil
		},
	}
}
