package orchestrator

import (
	"context"

	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// handleConflict runs the conflict-recovery path. It is called after finalize's
// squash sequence has raised the conflict count on the session. On entry
// both squashes have run: the UWC-restoration squash has folded the UWC's
// content into @, and the session commit or its descendants now carry a
// new conflict.
func (o *Orchestrator) handleConflict(ctx context.Context, s session.ID) error {
	ctx = logging.WithComponent(ctx, "orchestrator")

	// Revert the UWC-restoration squash, then the precommit->session
	// squash. The working copy returns to the pre-finalize state: @ is
	// the precommit, @- is the UWC.
	if err := o.VCS.Undo(ctx); err != nil {
		return err
	}
	if err := o.VCS.Undo(ctx); err != nil {
		return err
	}

	parts, err := o.Stack.PartCount(ctx, s)
	if err != nil {
		return err
	}
	partMsg := session.FormatSessionPartMessage(o.prefix(), s, parts+1)
	if err := o.VCS.Describe(ctx, "@", partMsg); err != nil {
		return err
	}
	logging.Info(ctx, "promoted precommit to session part", "session_id", s.Full(), "part", parts+1)
	o.Telemetry.PartCreated(s.Full(), parts+1)

	if err := o.VCS.New(ctx, vcs.NewOptions{Edit: true}); err != nil {
		return err
	}

	return o.liftTrappedUWC(ctx, s)
}

// liftTrappedUWC attempts to restore linearity by moving the UWC that got
// left behind between the new part and the prior stack back on top of the
// freshly created @. If the lift itself introduces conflicts, it is
// undone and the (acceptable, per spec) non-ideal layout is kept.
func (o *Orchestrator) liftTrappedUWC(ctx context.Context, s session.ID) error {
	ancestors, err := o.VCS.RevisionsInOrder(ctx, "::@- & ~root()")
	if err != nil {
		return err
	}

	trappedID, found := findTrappedUWC(ancestors)
	if !found {
		logging.Debug(ctx, "no trapped UWC found, leaving stack as-is", "session_id", s.Full())
		return nil
	}

	uwcDesc, err := o.VCS.GetDescription(ctx, trappedID)
	if err != nil {
		return err
	}

	conflictsBefore, err := o.VCS.CountConflictsAll(ctx)
	if err != nil {
		return err
	}

	opts := vcs.SquashOptions{From: trappedID, Into: "@", Message: uwcDesc}
	if err := o.VCS.Squash(ctx, opts); err != nil {
		return err
	}

	conflictsAfter, err := o.VCS.CountConflictsAll(ctx)
	if err != nil {
		return err
	}
	if conflictsAfter > conflictsBefore {
		logging.Info(ctx, "UWC lift introduced conflicts, backing out", "session_id", s.Full())
		return o.VCS.Undo(ctx)
	}
	logging.Debug(ctx, "UWC lifted onto new tip", "session_id", s.Full())
	return nil
}

// findTrappedUWC scans ancestors (nearest-first) for the first commit
// without a Claude-session-id trailer that appears after at least one
// commit that does carry one. This is a heuristic: it can
// misidentify the UWC if the user has layered other non-session commits
// beneath it, but the caller detects and reverts any resulting conflict
// increase.
func findTrappedUWC(ancestors []vcs.Commit) (string, bool) {
	seenSession := false
	for _, c := range ancestors {
		_, trailers := session.ParseMessage(c.Description)
		_, hasSession := session.LastTrailer(trailers, session.TrailerSessionID)
		if hasSession {
			seenSession = true
			continue
		}
		if seenSession {
			return c.ChangeID, true
		}
	}
	return "", false
}
