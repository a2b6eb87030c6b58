// Package cli assembles the jjagent command tree: the four Claude Code
// hook entry points, the settings generator, and the post-hoc curation
// commands (change-id, session-id, describe, split, move-session-into),
// plus a doctor diagnostic and the supplemented claude start/resume
// convenience commands.
package cli

import (
	"fmt"
	"runtime"

	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/config"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/orchestrator"
	"github.com/jjagent-oss/jjagent/internal/telemetry"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// Version is set at release build time via -ldflags.
var Version = "dev"

// NewRootCmd builds the full jjagent command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jjagent",
		Short:         "Bridges Claude Code tool-call sessions to isolated jj commits",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       Version,
	}
	root.SetVersionTemplate(versionTemplate())

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg := config.FromEnv()
		logCleanup = initRootLogging(cmd, cfg)
		return nil
	}
	root.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if logCleanup != nil {
			logCleanup()
		}
	}

	root.AddCommand(
		newClaudeCmd(),
		newChangeIDCmd(),
		newSessionIDCmd(),
		newDescribeCmd(),
		newSplitCmd(),
		newMoveSessionIntoCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)
	return root
}

func versionTemplate() string {
	return fmt.Sprintf("jjagent %s (%s, %s/%s)\n", "{{.Version}}", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "jjagent %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

// logCleanup holds the logging cleanup func for this process's single
// command execution (one jjagent invocation runs exactly one command).
var logCleanup func()

func initRootLogging(cmd *cobra.Command, cfg config.Config) func() {
	if err := logging.Init(cmd.Context(), cfg.LogFile, "", cfg.LogLevel); err != nil {
		return func() {}
	}
	return logging.Close
}

// newOrchestrator wires an Orchestrator against the real jj binary for
// the current working directory.
func newOrchestrator() *orchestrator.Orchestrator {
	cfg := config.FromEnv()
	runner := vcs.NewExecRunner("")
	o := orchestrator.New(runner, cfg)

	if !cfg.TelemetryDisabled {
		if id, err := machineid.ProtectedID("jjagent"); err == nil {
			o.Telemetry = telemetry.NewClient(cfg, id)
		}
	}
	return o
}
