package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/prompt"
	"github.com/jjagent-oss/jjagent/internal/session"
)

// newDescribeCmd implements `jjagent describe <session-id> -m <message>`
// If -m is omitted, the title is prompted for interactively
// when stdout is a terminal, or read as a single line from stdin
// otherwise.
func newDescribeCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "describe <session-id>",
		Short: "Rewrite a session commit's title, preserving its trailers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := message
			if title == "" {
				m, err := prompt.Message(os.Stdin, os.Stdout, "New session title")
				if err != nil {
					return err
				}
				title = m
			}
			o := newOrchestrator()
			return o.DescribeSession(cmd.Context(), session.NewID(args[0]), title)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "new title for the session commit")
	return cmd
}
