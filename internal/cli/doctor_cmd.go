package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/gitstore"
	"github.com/jjagent-oss/jjagent/internal/vcsutil"
)

// newDoctorCmd implements `jjagent doctor`: a read-only diagnostic that
// checks the jj version, the repository root, and (when the colocated
// git backend is in use) its basic shape, independent of jj itself.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the current repository's jjagent setup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			o := newOrchestrator()
			out := cmd.OutOrStdout()

			if !o.VCS.IsRepo(ctx) {
				fmt.Fprintln(out, "not a jj repository")
				return nil
			}
			fmt.Fprintln(out, "jj repository: ok")

			if err := vcsutil.CheckVersion(ctx, o.VCS); err != nil {
				fmt.Fprintf(out, "jj version: %v\n", err)
			} else {
				fmt.Fprintln(out, "jj version: ok")
			}

			root, err := o.VCS.Root(ctx)
			if err != nil {
				fmt.Fprintf(out, "repository root: error: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "repository root: %s\n", root)

			info, err := gitstore.Inspect(root)
			if err != nil {
				fmt.Fprintln(out, "colocated git backend: not in use (native backend)")
			} else {
				fmt.Fprintf(out, "colocated git backend: HEAD %s (%s), %d commits, %d refs\n",
					info.HeadHash, info.HeadBranch, info.CommitCount, info.PackedRefs)
			}
			return nil
		},
	}
}
