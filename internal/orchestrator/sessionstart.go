package orchestrator

import (
	"context"
	"fmt"

	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/logging"
	"github.com/jjagent-oss/jjagent/internal/session"
)

// PromptSubmit implements the SessionStart/UserPromptSubmit lifecycle
// event. Unlike PreTool/PostTool it never touches the working copy or the
// lock: it is read-only and exists to hand the assistant a small amount
// of orienting context when it is resuming a session that already has a
// commit stack. There is no precondition contract for this event beyond
// the Hook I/O shape, so it stays read-only and lock-free by design.
func (o *Orchestrator) PromptSubmit(ctx context.Context, in hookio.Input) hookio.Output {
	ctx = logging.WithComponent(ctx, "orchestrator")

	if o.Config.Disabled || !o.VCS.IsRepo(ctx) {
		return hookio.Continue()
	}

	s := session.NewID(in.SessionID)
	if s.IsZero() {
		return hookio.Continue()
	}

	changeID, found, err := o.Stack.FindAnywhere(ctx, s)
	if err != nil || !found {
		return hookio.Continue()
	}

	parts, err := o.Stack.PartCount(ctx, s)
	if err != nil {
		parts = 1
	}

	note := fmt.Sprintf("jjagent: resuming session %s; existing session commit %s (%d part(s)).", s.Short(), changeID, parts)
	return hookio.ContinueWithContext(in.HookEventName, note)
}
