package cli

import (
	"github.com/spf13/cobra"
)

// newSplitCmd implements `jjagent split <ref-or-session-id>`.
func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <ref-or-session-id>",
		Short: "Insert a new session-part commit above the given reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := newOrchestrator()
			return o.Split(cmd.Context(), args[0])
		},
	}
}
