package orchestrator

import (
	"context"

	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/lock"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// PreTool handles the PreToolUse event. On success the working-copy lock remains
// held; it is released by the matching PostTool or Stop call.
func (o *Orchestrator) PreTool(ctx context.Context, in hookio.Input) hookio.Output {
	ctx = logging.WithComponent(ctx, "orchestrator")

	if o.Config.Disabled {
		return hookio.Continue()
	}
	if !o.VCS.IsRepo(ctx) {
		return hookio.Continue()
	}

	s := session.NewID(in.SessionID)

	metaDir, err := o.metadataDir(ctx)
	if err != nil {
		return vcsError(ctx, "root", err)
	}

	l, err := lock.Acquire(ctx, metaDir, s.Full())
	if err != nil {
		logging.Error(ctx, "lock acquire failed", "session_id", s.Full(), "error", err.Error())
		return hookio.Stop(err.Error())
	}

	fail := func(out hookio.Output) hookio.Output {
		if relErr := lock.Release(ctx, l); relErr != nil {
			logging.Warn(ctx, "lock release after precondition failure also failed", "error", relErr.Error())
		}
		return out
	}

	if err := o.VCS.WorkspaceUpdateStale(ctx); err != nil {
		return fail(vcsError(ctx, "workspace_update_stale", err))
	}

	if cur, ok, err := o.VCS.CurrentSessionIDTrailer(ctx); err != nil {
		return fail(vcsError(ctx, "current_session_id_trailer", err))
	} else if ok {
		return fail(hookio.Stop(preconditionError("@ already carries session trailer " + cur.Full())))
	}

	atHead, err := o.VCS.IsAtHead(ctx)
	if err != nil {
		return fail(vcsError(ctx, "is_at_head", err))
	}
	if !atHead {
		return fail(hookio.Stop(preconditionError("@ is not at the head of the stack")))
	}

	hasConflicts, err := o.VCS.HasConflicts(ctx, "@")
	if err != nil {
		return fail(vcsError(ctx, "has_conflicts", err))
	}
	if hasConflicts {
		return fail(hookio.Stop(preconditionError("@ already has conflicts")))
	}

	msg := session.FormatPrecommitTrailerMessage(o.prefix(), s)
	if err := o.VCS.New(ctx, vcs.NewOptions{Edit: true, Message: msg}); err != nil {
		return fail(vcsError(ctx, "new", err))
	}

	logging.Debug(ctx, "precommit created", "session_id", s.Full())
	return hookio.Continue()
}
