// Package orchestrator implements Component E: the four hook handlers
// (PreTool, PostTool, Stop, SessionStart/UserPromptSubmit) and the
// finalize_precommit/conflict-path logic they share.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jjagent-oss/jjagent/internal/config"
	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/lock"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/stack"
	"github.com/jjagent-oss/jjagent/internal/telemetry"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// Orchestrator holds the dependencies every hook handler needs. One value
// is constructed per process invocation.
type Orchestrator struct {
	VCS       *vcs.Adapter
	Stack     *stack.Queries
	Config    config.Config
	Telemetry telemetry.Client
}

// New wires an Orchestrator from a Runner and resolved config. Telemetry
// defaults to NoOpClient; callers that want real events set the field
// after construction (the CLI layer resolves the machine id first).
func New(runner vcs.Runner, cfg config.Config) *Orchestrator {
	a := vcs.New(runner)
	return &Orchestrator{VCS: a, Stack: stack.New(a), Config: cfg, Telemetry: telemetry.NoOpClient{}}
}

func (o *Orchestrator) prefix() string {
	if o.Config.CommitPrefix != "" {
		return o.Config.CommitPrefix
	}
	return session.DefaultPrefix
}

// metadataDir returns the jj metadata directory the lock file lives in.
func (o *Orchestrator) metadataDir(ctx context.Context) (string, error) {
	root, err := o.VCS.Root(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".jj"), nil
}

// preconditionError formats a PreconditionViolated stop reason.
func preconditionError(reason string) string {
	return fmt.Sprintf("precondition violated: %s", reason)
}

// vcsError formats a VcsError stop reason including the failing operation.
func vcsError(ctx context.Context, op string, err error) hookio.Output {
	logging.Error(ctx, "vcs operation failed", "op", op, "error", err.Error())
	return hookio.Stop(fmt.Sprintf("jjagent: %s failed: %v", op, err))
}
