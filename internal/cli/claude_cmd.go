package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/orchestrator"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// newClaudeCmd groups every command that exists specifically to
// integrate with Claude Code: the four hook entry points, the settings
// snippet generator, and the start/resume convenience wrappers.
func newClaudeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "claude",
		Short:  "Claude Code integration commands",
		Hidden: true,
	}
	cmd.AddCommand(
		newHooksCmd(),
		newSettingsCmd(),
		newClaudeStartCmd(),
		newClaudeResumeCmd(),
	)
	return cmd
}

func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Hook entry points invoked by Claude Code",
	}
	cmd.AddCommand(
		newHookCmd("PreToolUse", func(o *orchestrator.Orchestrator, ctx context.Context, in hookio.Input) hookio.Output {
			return o.PreTool(ctx, in)
		}),
		newHookCmd("PostToolUse", func(o *orchestrator.Orchestrator, ctx context.Context, in hookio.Input) hookio.Output {
			return o.PostTool(ctx, in)
		}),
		newHookCmd("Stop", func(o *orchestrator.Orchestrator, ctx context.Context, in hookio.Input) hookio.Output {
			return o.Stop(ctx, in)
		}),
		newHookCmd("UserPromptSubmit", func(o *orchestrator.Orchestrator, ctx context.Context, in hookio.Input) hookio.Output {
			return o.PromptSubmit(ctx, in)
		}),
	)
	return cmd
}

type hookHandler func(*orchestrator.Orchestrator, context.Context, hookio.Input) hookio.Output

func newHookCmd(event string, handle hookHandler) *cobra.Command {
	return &cobra.Command{
		Use:   event,
		Short: fmt.Sprintf("Handle the %s lifecycle event", event),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logging.WithComponent(cmd.Context(), "hooks")
			start := time.Now()

			in, err := hookio.ReadInput(cmd.InOrStdin())
			if err != nil {
				out := hookio.Stop(fmt.Sprintf("parsing hook input: %v", err))
				return hookio.WriteOutput(cmd.OutOrStdout(), out)
			}
			if in.HookEventName == "" {
				in.HookEventName = event
			}

			o := newOrchestrator()
			out := handle(o, ctx, in)
			logging.LogDuration(ctx, slog.LevelInfo, event+" hook handled", start,
				"session_id", in.SessionID, "continue", out.Continue)

			if writeErr := hookio.WriteOutput(cmd.OutOrStdout(), out); writeErr != nil {
				return writeErr
			}
			if !out.Continue {
				return fmt.Errorf("%s", out.StopReason)
			}
			return nil
		},
	}
}

// newSettingsCmd prints the host-configuration JSON that wires Claude
// Code's four hook events to this binary, in the file-write-family tool
// matcher shape the host expects.
func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print Claude Code settings JSON wiring jjagent's hooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := hookSettings("jjagent")
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(settings)
		},
	}
}

type hookEntry struct {
	Matcher string       `json:"matcher,omitempty"`
	Hooks   []hookAction `json:"hooks"`
}

type hookAction struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

func hookSettings(bin string) map[string]any {
	fileToolMatcher := "Edit|Write|MultiEdit|NotebookEdit"
	mk := func(event string) []hookEntry {
		return []hookEntry{{
			Matcher: fileToolMatcher,
			Hooks:   []hookAction{{Type: "command", Command: fmt.Sprintf("%s claude hooks %s", bin, event)}},
		}}
	}
	mkUnmatched := func(event string) []hookEntry {
		return []hookEntry{{
			Hooks: []hookAction{{Type: "command", Command: fmt.Sprintf("%s claude hooks %s", bin, event)}},
		}}
	}
	return map[string]any{
		"hooks": map[string]any{
			"PreToolUse":       mk("PreToolUse"),
			"PostToolUse":      mk("PostToolUse"),
			"Stop":             mkUnmatched("Stop"),
			"UserPromptSubmit": mkUnmatched("UserPromptSubmit"),
		},
	}
}

// newClaudeStartCmd implements `jjagent claude start`: generates a fresh
// session id, optionally stamps an initial description (carrying the
// session trailer) onto a new commit inserted below the working copy,
// writes the generated hook settings to a temp file, and execs into the
// claude binary with --session-id wired up. Everything after a bare "--"
// is passed through to claude untouched.
func newClaudeStartCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "start [-- claude-args...]",
		Short: "Start a new Claude Code session wired into jj",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o := newOrchestrator()
			sid := session.NewID(uuid.NewString())

			if message != "" {
				msg := session.EncodeMessage(message, []session.Trailer{{Key: session.TrailerSessionID, Value: sid.Full()}})
				if err := o.VCS.New(ctx, vcs.NewOptions{InsertBefore: "@", Edit: false, Message: msg}); err != nil {
					return err
				}
			}

			settingsPath, err := writeSettingsTempFile()
			if err != nil {
				return err
			}
			return execClaudeCLI(cmd, settingsPath, []string{"--session-id", sid.Full()}, args)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "initial description for the session's commit")
	return cmd
}

// newClaudeResumeCmd implements `jjagent claude resume`: resolves
// ref-or-session-id to a session id (a bare UUID is accepted directly;
// anything else is resolved as a jj revset carrying the session
// trailer), optionally rewrites the session commit's title via
// DescribeSession, writes the hook settings to a temp file, and execs
// into claude with --resume wired up.
func newClaudeResumeCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "resume <ref-or-session-id> [-- claude-args...]",
		Short: "Resume an existing Claude Code session wired into jj",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o := newOrchestrator()

			sid, err := resolveSessionID(ctx, o, args[0])
			if err != nil {
				return err
			}
			if message != "" {
				if err := o.DescribeSession(ctx, sid, message); err != nil {
					return err
				}
			}

			settingsPath, err := writeSettingsTempFile()
			if err != nil {
				return err
			}
			return execClaudeCLI(cmd, settingsPath, []string{"--resume", sid.Full()}, args[1:])
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "new title for the session's commit before resuming")
	return cmd
}

// resolveSessionID accepts a bare session UUID as-is, or resolves ref as
// a jj revset and reads its Claude-session-id trailer.
func resolveSessionID(ctx context.Context, o *orchestrator.Orchestrator, ref string) (session.ID, error) {
	if looksLikeSessionID(ref) {
		return session.NewID(ref), nil
	}
	trailers, err := o.VCS.GetTrailers(ctx, ref)
	if err != nil {
		return session.ID{}, err
	}
	v, ok := session.LastTrailer(trailers, session.TrailerSessionID)
	if !ok {
		return session.ID{}, fmt.Errorf("%s carries no session id trailer", ref)
	}
	return session.NewID(v), nil
}

func looksLikeSessionID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

// writeSettingsTempFile writes the generated hook-settings JSON (wired to
// this process's own executable) to a fresh temp file and returns its
// path, for claude's --settings flag to point at.
func writeSettingsTempFile() (string, error) {
	bin, err := os.Executable()
	if err != nil {
		bin = "jjagent"
	}

	f, err := os.CreateTemp("", "jjagent-claude-settings-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(hookSettings(bin)); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// execClaudeCLI runs the claude binary in the foreground with this
// process's stdio, then exits with its exit code. Go cannot replace its
// own process image the way a Unix exec(2) can, so running-then-exiting
// with the matching code is the closest equivalent available to a cobra
// RunE; logCleanup is flushed manually since PersistentPostRun never
// gets a chance to run after os.Exit.
func execClaudeCLI(cmd *cobra.Command, settingsPath string, sessionArgs, trailingArgs []string) error {
	args := make([]string, 0, 2+len(sessionArgs)+len(trailingArgs))
	args = append(args, "--settings", settingsPath)
	args = append(args, sessionArgs...)
	args = append(args, trailingArgs...)

	child := exec.CommandContext(cmd.Context(), "claude", args...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	runErr := child.Run()
	if logCleanup != nil {
		logCleanup()
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	if runErr != nil {
		return fmt.Errorf("running claude: %w", runErr)
	}
	os.Exit(0)
	return nil
}
