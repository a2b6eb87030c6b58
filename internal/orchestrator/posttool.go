package orchestrator

import (
	"context"
	"time"

	"github.com/jjagent-oss/jjagent/internal/diffstat"
	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/lock"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/secretscan"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// PostTool finalizes the precommit into the session commit, always
// releasing the lock afterward.
func (o *Orchestrator) PostTool(ctx context.Context, in hookio.Input) hookio.Output {
	return o.finalizeAndRelease(ctx, in)
}

// Stop handles the Stop event: identical to PostTool,
// it exists as a fallback so a session that never receives a clean
// PostTool (e.g. the final tool call in a turn) still finalizes and
// releases its lock.
func (o *Orchestrator) Stop(ctx context.Context, in hookio.Input) hookio.Output {
	return o.finalizeAndRelease(ctx, in)
}

func (o *Orchestrator) finalizeAndRelease(ctx context.Context, in hookio.Input) hookio.Output {
	ctx = logging.WithComponent(ctx, "orchestrator")

	if o.Config.Disabled {
		return hookio.Continue()
	}
	if !o.VCS.IsRepo(ctx) {
		return hookio.Continue()
	}

	if o.Config.PostToolDelay > 0 {
		time.Sleep(o.Config.PostToolDelay)
	}

	s := session.NewID(in.SessionID)

	metaDir, err := o.metadataDir(ctx)
	if err != nil {
		return vcsError(ctx, "root", err)
	}

	out := func() hookio.Output {
		if err := o.finalizePrecommit(ctx, s); err != nil {
			return vcsError(ctx, "finalize_precommit", err)
		}
		return hookio.Continue()
	}()

	// The lock must be released even on finalize failure: an
	// unrecoverable error still has to let the next session proceed.
	// PostTool/Stop run in a fresh process that never held an in-memory
	// *lock.Lock from Acquire, so release by identity instead.
	if relErr := lock.ReleaseByID(ctx, metaDir, s.Full()); relErr != nil {
		logging.Warn(ctx, "lock release failed", "session_id", s.Full(), "error", relErr.Error())
	}

	return out
}

// finalizePrecommit implements the shared PostTool/Stop body.
func (o *Orchestrator) finalizePrecommit(ctx context.Context, s session.ID) error {
	if err := o.VCS.WorkspaceUpdateStale(ctx); err != nil {
		return err
	}

	hasConflicts, err := o.VCS.HasConflicts(ctx, "@")
	if err != nil {
		return err
	}
	if hasConflicts {
		return &PreconditionError{Reason: "user introduced conflicts manually"}
	}

	precommit, ok, err := o.VCS.CurrentPrecommitTrailer(ctx)
	if err != nil {
		return err
	}
	if !ok || !precommit.Equal(s) {
		// Not our precommit: either a read-only tool didn't touch the
		// working copy, the user is already back on UWC, or a different
		// session's precommit is current. No-op (I4 idempotence).
		return nil
	}

	sessionChangeID, found, err := o.Stack.FindAnywhere(ctx, s)
	if err != nil {
		return err
	}
	if !found {
		msg := session.FormatSessionMessage(o.prefix(), s)
		if err := o.VCS.New(ctx, vcs.NewOptions{InsertBefore: "@-", Edit: false, Message: msg}); err != nil {
			return err
		}
		sessionChangeID, found, err = o.Stack.FindAnywhere(ctx, s)
		if err != nil {
			return err
		}
		if !found {
			return &session.NotFoundError{SessionID: s.Full()}
		}
		o.Telemetry.SessionCreated(s.Full())
	}

	uwcID, err := o.VCS.GetChangeID(ctx, "@-")
	if err != nil {
		return err
	}
	uwcDesc, err := o.VCS.GetDescription(ctx, uwcID)
	if err != nil {
		return err
	}
	conflictsBefore, err := o.VCS.CountConflicts(ctx, sessionChangeID)
	if err != nil {
		return err
	}

	if diff, err := o.VCS.DiffText(ctx); err == nil {
		secretscan.Scan(ctx, s.Full(), diff)
		sum := diffstat.Summarize(diff)
		logging.Debug(ctx, "precommit diff summary", "session_id", s.Full(),
			"files_changed", sum.FilesChanged, "lines_added", sum.LinesAdded, "lines_removed", sum.LinesRemoved)
	}

	// Squash into session: @ folds into the session commit; jj leaves a
	// fresh empty @ directly above the (now rebased-up) UWC.
	if err := o.VCS.Squash(ctx, vcs.SquashOptions{From: "@", Into: sessionChangeID, UseDestinationMessage: true}); err != nil {
		return err
	}

	// Restore UWC on top: fold the rebased UWC into the new empty @,
	// re-establishing the invariant that @ is the user's commit.
	if err := o.VCS.Squash(ctx, vcs.SquashOptions{From: "@-", Into: "@", Message: uwcDesc}); err != nil {
		return err
	}

	conflictsAfter, err := o.VCS.CountConflicts(ctx, sessionChangeID)
	if err != nil {
		return err
	}
	if conflictsAfter > conflictsBefore {
		logging.Info(ctx, "squash introduced conflicts, diverting to session part", "session_id", s.Full())
		o.Telemetry.ConflictHandled(s.Full())
		return o.handleConflict(ctx, s)
	}
	return nil
}

// PreconditionError reports a violated PreTool/PostTool precondition
// (the PreconditionViolated error kind).
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return preconditionError(e.Reason)
}
