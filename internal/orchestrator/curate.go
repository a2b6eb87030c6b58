package orchestrator

import (
	"context"
	"fmt"

	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// DescribeSession implements the "describe session" curation command: locate the
// session commit by SessionId, substitute its title-body, and re-emit
// with all trailers intact.
func (o *Orchestrator) DescribeSession(ctx context.Context, s session.ID, newTitle string) error {
	changeID, found, err := o.Stack.FindAnywhere(ctx, s)
	if err != nil {
		return err
	}
	if !found {
		return &session.NotFoundError{SessionID: s.Full()}
	}
	desc, err := o.VCS.GetDescription(ctx, changeID)
	if err != nil {
		return err
	}
	newDesc := session.SetTitleBody(desc, newTitle)
	return o.VCS.Describe(ctx, changeID, newDesc)
}

// MoveSessionInto implements the "move session into" curation command: assert
// ancestorRef is a strict ancestor of @, strip any existing
// Claude-session-id trailer from its description, append the new one,
// preserving every other trailer.
func (o *Orchestrator) MoveSessionInto(ctx context.Context, s session.ID, ancestorRef string) error {
	ok, err := o.isStrictAncestorOfHead(ctx, ancestorRef)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a strict ancestor of @", ancestorRef)
	}

	changeID, err := o.VCS.GetChangeID(ctx, ancestorRef)
	if err != nil {
		return err
	}
	desc, err := o.VCS.GetDescription(ctx, changeID)
	if err != nil {
		return err
	}
	newDesc := session.SetTrailer(desc, session.TrailerSessionID, s.Full())
	return o.VCS.Describe(ctx, changeID, newDesc)
}

// Split implements the "split" curation command: resolve ref first as a SessionId
// (via find-anywhere), falling back to a literal VCS reference; assert
// ancestry to @; insert a new "pt. k" commit directly between the
// referenced commit and @.
func (o *Orchestrator) Split(ctx context.Context, refOrSessionID string) error {
	s := session.NewID(refOrSessionID)
	ref, found, err := o.Stack.FindAnywhere(ctx, s)
	if err != nil {
		return err
	}
	if !found {
		ref = refOrSessionID
	}

	ok, err := o.isStrictAncestorOfHead(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a strict ancestor of @", ref)
	}

	changeID, err := o.VCS.GetChangeID(ctx, ref)
	if err != nil {
		return err
	}
	desc, err := o.VCS.GetDescription(ctx, changeID)
	if err != nil {
		return err
	}
	_, trailers := session.ParseMessage(desc)
	id, ok := session.LastTrailer(trailers, session.TrailerSessionID)
	if !ok {
		return fmt.Errorf("%s carries no session trailer to split", ref)
	}
	sessID := session.NewID(id)

	parts, err := o.Stack.PartCount(ctx, sessID)
	if err != nil {
		return err
	}
	msg := session.FormatSessionPartMessage(o.prefix(), sessID, parts+1)
	return o.VCS.New(ctx, vcs.NewOptions{InsertBefore: "@", Edit: false, Message: msg})
}

// isStrictAncestorOfHead reports whether ref resolves to a strict
// ancestor of @ (i.e. ref is in @'s history but is not @ itself).
func (o *Orchestrator) isStrictAncestorOfHead(ctx context.Context, ref string) (bool, error) {
	revset := fmt.Sprintf("(::@ ~ @) & (%s)", ref)
	out, err := o.VCS.RevisionsInOrder(ctx, revset)
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}
