package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/session"
)

// newSessionIDCmd implements `jjagent session-id [<revset>]`: prints the
// last Claude-session-id trailer on the named revision, default @.
func newSessionIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-id [<revset>]",
		Short: "Print the session id carried by a revision's trailer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revset := "@"
			if len(args) == 1 {
				revset = args[0]
			}
			o := newOrchestrator()
			trailers, err := o.VCS.GetTrailers(cmd.Context(), revset)
			if err != nil {
				return err
			}
			if v, ok := session.LastTrailer(trailers, session.TrailerSessionID); ok {
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}
			return fmt.Errorf("%s carries no session id trailer", revset)
		},
	}
}
