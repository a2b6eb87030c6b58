package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jjagent-oss/jjagent/internal/config"
	"github.com/jjagent-oss/jjagent/internal/hookio"
	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// orderedRunner replays a fixed sequence of responses to Run calls,
// mirroring the exact call order the orchestrator issues for a given
// scenario; an entry with wantOp set fails the test if the call's op
// differs, and "root" calls are answered outside the script. This keeps
// scenario tests readable: each entry in the script lines up with one
// Adapter call.
type orderedRunner struct {
	t        *testing.T
	root     string
	script   []scriptedCall
	pos      int
	allCalls []fakeInvocation
}

type scriptedCall struct {
	wantOp string
	out    string
	err    error
}

type fakeInvocation struct {
	op   string
	args []string
}

func (r *orderedRunner) Run(_ context.Context, op string, args ...string) (string, error) {
	r.allCalls = append(r.allCalls, fakeInvocation{op: op, args: args})
	if op == "root" {
		return r.root + "\n", nil
	}
	if r.pos >= len(r.script) {
		r.t.Fatalf("orderedRunner: unexpected extra call op=%q args=%v (script exhausted)", op, args)
	}
	sc := r.script[r.pos]
	r.pos++
	if sc.wantOp != "" && sc.wantOp != op {
		r.t.Fatalf("orderedRunner: call %d op = %q, want %q (args=%v)", r.pos, op, sc.wantOp, args)
	}
	return sc.out, sc.err
}

func (r *orderedRunner) RunStdin(ctx context.Context, op string, _ string, args ...string) (string, error) {
	return r.Run(ctx, op, args...)
}

const fieldSep = "\x1f"
const recordSep = "\x1e"

func logRecord(changeID, description string) string {
	return changeID + fieldSep + description + recordSep
}

type fakeTelemetry struct {
	sessionsCreated  []string
	partsCreated     []int
	conflictsHandled int
}

func (f *fakeTelemetry) SessionCreated(sessionID string)        { f.sessionsCreated = append(f.sessionsCreated, sessionID) }
func (f *fakeTelemetry) PartCreated(sessionID string, part int) { f.partsCreated = append(f.partsCreated, part) }
func (f *fakeTelemetry) ConflictHandled(sessionID string)       { f.conflictsHandled++ }
func (f *fakeTelemetry) Close()                                 {}

func newOrch(t *testing.T, script []scriptedCall) (*Orchestrator, *orderedRunner, *fakeTelemetry) {
	t.Helper()
	root := t.TempDir()
	r := &orderedRunner{t: t, root: root, script: script}
	tel := &fakeTelemetry{}
	o := New(r, config.Config{})
	o.Telemetry = tel
	return o, r, tel
}

func TestPreToolHappyPath(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: ""}, // current_session_id_trailer: @ has no description/trailers
		{wantOp: "log", out: ""}, // is_at_head: no descendants
		{wantOp: "log", out: ""}, // has_conflicts(@): none
		{wantOp: "new", out: ""},
	}
	o, r, _ := newOrch(t, script)

	out := o.PreTool(context.Background(), hookio.Input{SessionID: s.Full(), HookEventName: "PreToolUse"})
	if !out.Continue {
		t.Fatalf("PreTool() = %+v, want Continue", out)
	}
	if r.pos != len(script) {
		t.Errorf("expected all %d scripted calls consumed, got %d", len(script), r.pos)
	}

	lastNew := r.allCalls[len(r.allCalls)-1]
	if lastNew.op != "new" || !strings.Contains(strings.Join(lastNew.args, " "), "precommit") {
		t.Errorf("expected the final call to create a precommit, got %+v", lastNew)
	}
}

func TestPreToolAlreadyHasSessionTrailerFails(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	existing := session.FormatSessionMessage("jjagent", session.NewID("other-session-full"))
	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: existing}, // current_session_id_trailer: already set
	}
	o, r, _ := newOrch(t, script)

	out := o.PreTool(context.Background(), hookio.Input{SessionID: s.Full()})
	if out.Continue {
		t.Fatalf("PreTool() = %+v, want Stop", out)
	}
	if !strings.Contains(out.StopReason, "precondition violated") {
		t.Errorf("StopReason = %q, want a precondition-violated message", out.StopReason)
	}
	if r.pos != len(script) {
		t.Errorf("expected exactly %d calls before bailing out, got %d", len(script), r.pos)
	}
}

func TestPreToolDisabledIsNoop(t *testing.T) {
	t.Parallel()

	o, r, _ := newOrch(t, nil)
	o.Config.Disabled = true

	out := o.PreTool(context.Background(), hookio.Input{SessionID: "x"})
	if !out.Continue {
		t.Errorf("PreTool() with Disabled = %+v, want Continue", out)
	}
	if len(r.allCalls) != 0 {
		t.Errorf("expected no VCS calls when disabled, got %v", r.allCalls)
	}
}

func TestFinalizePrecommitHappyPath(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	precommitDesc := session.FormatPrecommitTrailerMessage("jjagent", s)
	sessionLog := logRecord("zzzz0001", session.FormatSessionMessage("jjagent", s))

	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: ""},            // has_conflicts(@): none
		{wantOp: "log", out: precommitDesc}, // current_precommit_trailer: ours
		{wantOp: "log", out: sessionLog},    // FindAnywhere: session commit exists
		{wantOp: "log", out: "wwww9999\n"},  // GetChangeID(@-) -> uwc id
		{wantOp: "log", out: "work in progress"}, // GetDescription(uwc)
		{wantOp: "log", out: ""},                 // CountConflicts before: 0
		{wantOp: "diff", out: "diff --git a/x b/x\n+new line\n"},
		{wantOp: "squash", out: ""}, // squash @ into session
		{wantOp: "squash", out: ""}, // squash @- (uwc) into new @
		{wantOp: "log", out: ""},    // CountConflicts after: 0
	}
	o, r, tel := newOrch(t, script)

	if err := o.finalizePrecommit(context.Background(), s); err != nil {
		t.Fatalf("finalizePrecommit() error = %v", err)
	}
	if r.pos != len(script) {
		t.Errorf("expected all %d scripted calls consumed, got %d", len(script), r.pos)
	}
	if tel.conflictsHandled != 0 {
		t.Errorf("expected no conflict handling on the happy path, got %d", tel.conflictsHandled)
	}
	if len(tel.sessionsCreated) != 0 {
		t.Errorf("expected no SessionCreated event when the session commit already exists, got %v", tel.sessionsCreated)
	}
}

func TestFinalizePrecommitNotOurPrecommitIsNoop(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	otherPrecommit := session.FormatPrecommitTrailerMessage("jjagent", session.NewID("other-full"))
	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: ""},              // has_conflicts(@): none
		{wantOp: "log", out: otherPrecommit},  // current_precommit_trailer: someone else's
	}
	o, r, _ := newOrch(t, script)

	if err := o.finalizePrecommit(context.Background(), s); err != nil {
		t.Fatalf("finalizePrecommit() error = %v, want nil (idempotent no-op)", err)
	}
	if r.pos != len(script) {
		t.Errorf("expected finalize to stop after the precommit-trailer mismatch, consumed %d of %d calls", r.pos, len(script))
	}
}

func TestFinalizePrecommitCreatesSessionWhenMissing(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	precommitDesc := session.FormatPrecommitTrailerMessage("jjagent", s)
	sessionLog := logRecord("zzzz0001", session.FormatSessionMessage("jjagent", s))

	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: ""},            // has_conflicts(@): none
		{wantOp: "log", out: precommitDesc}, // current_precommit_trailer: ours
		{wantOp: "log", out: ""},            // FindAnywhere: not found yet
		{wantOp: "new", out: ""},            // create the session commit
		{wantOp: "log", out: sessionLog},    // FindAnywhere again: now found
		{wantOp: "log", out: "wwww9999\n"},
		{wantOp: "log", out: "work in progress"},
		{wantOp: "log", out: ""},
		{wantOp: "diff", out: ""},
		{wantOp: "squash", out: ""},
		{wantOp: "squash", out: ""},
		{wantOp: "log", out: ""},
	}
	o, r, tel := newOrch(t, script)

	if err := o.finalizePrecommit(context.Background(), s); err != nil {
		t.Fatalf("finalizePrecommit() error = %v", err)
	}
	if r.pos != len(script) {
		t.Errorf("expected all %d scripted calls consumed, got %d", len(script), r.pos)
	}
	if len(tel.sessionsCreated) != 1 || tel.sessionsCreated[0] != s.Full() {
		t.Errorf("expected a single SessionCreated(%s) event, got %v", s.Full(), tel.sessionsCreated)
	}
}

func TestFinalizePrecommitConflictTriggersHandleConflict(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	precommitDesc := session.FormatPrecommitTrailerMessage("jjagent", s)
	sessionLog := logRecord("zzzz0001", session.FormatSessionMessage("jjagent", s))

	script := []scriptedCall{
		{wantOp: "workspace-update-stale", out: ""},
		{wantOp: "log", out: ""},
		{wantOp: "log", out: precommitDesc},
		{wantOp: "log", out: sessionLog},
		{wantOp: "log", out: "wwww9999\n"},
		{wantOp: "log", out: "work in progress"},
		{wantOp: "log", out: ""}, // conflicts before: 0
		{wantOp: "diff", out: ""},
		{wantOp: "squash", out: ""},
		{wantOp: "squash", out: ""},
		{wantOp: "log", out: "zzzz0001\n"}, // conflicts after: 1 -> rises
		// handleConflict:
		{wantOp: "undo", out: ""},
		{wantOp: "undo", out: ""},
		{wantOp: "log", out: sessionLog}, // PartCount
		{wantOp: "describe", out: ""},
		{wantOp: "new", out: ""},
		{wantOp: "log", out: ""}, // liftTrappedUWC: RevisionsInOrder -> none
	}
	o, r, tel := newOrch(t, script)

	if err := o.finalizePrecommit(context.Background(), s); err != nil {
		t.Fatalf("finalizePrecommit() error = %v", err)
	}
	if r.pos != len(script) {
		t.Errorf("expected all %d scripted calls consumed, got %d", len(script), r.pos)
	}
	if tel.conflictsHandled != 1 {
		t.Errorf("expected ConflictHandled to fire once, got %d", tel.conflictsHandled)
	}
	if len(tel.partsCreated) != 1 || tel.partsCreated[0] != 2 {
		t.Errorf("expected PartCreated(2), got %v", tel.partsCreated)
	}
}

func TestPromptSubmitNoSessionCommitIsPlainContinue(t *testing.T) {
	t.Parallel()

	script := []scriptedCall{
		{wantOp: "log", out: ""}, // FindAnywhere: nothing
	}
	o, _, _ := newOrch(t, script)

	out := o.PromptSubmit(context.Background(), hookio.Input{SessionID: "abcd1234-full", HookEventName: "UserPromptSubmit"})
	if !out.Continue || out.HookSpecificOutput != nil {
		t.Errorf("PromptSubmit() = %+v, want a plain Continue with no injected context", out)
	}
}

func TestPromptSubmitResumingSessionInjectsContext(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	sessionLog := logRecord("zzzz0001", session.FormatSessionMessage("jjagent", s))
	script := []scriptedCall{
		{wantOp: "log", out: sessionLog}, // FindAnywhere: found
		{wantOp: "log", out: sessionLog}, // PartCount
	}
	o, _, _ := newOrch(t, script)

	out := o.PromptSubmit(context.Background(), hookio.Input{SessionID: s.Full(), HookEventName: "UserPromptSubmit"})
	if !out.Continue {
		t.Fatalf("PromptSubmit() = %+v, want Continue", out)
	}
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, s.Short()) {
		t.Errorf("expected injected context to mention the short session id, got %+v", out.HookSpecificOutput)
	}
}

func TestMetadataDirJoinsRootAndJJ(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrch(t, nil)
	dir, err := o.metadataDir(context.Background())
	if err != nil {
		t.Fatalf("metadataDir() error = %v", err)
	}
	root, err := o.VCS.Root(context.Background())
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	if dir != filepath.Join(root, ".jj") {
		t.Errorf("metadataDir() = %q, want %q", dir, filepath.Join(root, ".jj"))
	}
}

func TestVcsErrorFormatsStopReason(t *testing.T) {
	t.Parallel()

	out := vcsError(context.Background(), "squash", &vcs.Error{Op: "squash", Err: fmt.Errorf("boom")})
	if out.Continue {
		t.Error("vcsError() should never Continue")
	}
	if !strings.Contains(out.StopReason, "squash") {
		t.Errorf("StopReason = %q, want it to mention the failing op", out.StopReason)
	}
}
