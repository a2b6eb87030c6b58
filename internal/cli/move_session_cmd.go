package cli

import (
	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/session"
)

// newMoveSessionIntoCmd implements `jjagent move-session-into <session>
// <ancestor-ref>`.
func newMoveSessionIntoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move-session-into <session-id> <ancestor-ref>",
		Short: "Move a session's trailer onto an ancestor commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := newOrchestrator()
			return o.MoveSessionInto(cmd.Context(), session.NewID(args[0]), args[1])
		},
	}
}
