package stack

import (
	"context"
	"strings"
	"testing"

	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// fakeRunner scripts vcs.Runner for stack-level tests: every "log"
// invocation returns the same canned output, regardless of revset.
type fakeRunner struct {
	logOutput string
	lastArgs  []string
}

func (f *fakeRunner) Run(_ context.Context, op string, args ...string) (string, error) {
	f.lastArgs = args
	if op == "log" {
		return f.logOutput, nil
	}
	return "", nil
}

func (f *fakeRunner) RunStdin(ctx context.Context, op string, _ string, args ...string) (string, error) {
	return f.Run(ctx, op, args...)
}

const fieldSep = "\x1f"
const recordSep = "\x1e"

func logRecord(changeID, description string) string {
	return changeID + fieldSep + description + recordSep
}

func TestFindAnywhere(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	r := &fakeRunner{logOutput: logRecord("zzzz0001", "jjagent: session abcd1234\n\nClaude-session-id: abcd1234-full")}
	q := New(vcs.New(r))

	changeID, found, err := q.FindAnywhere(context.Background(), s)
	if err != nil || !found || changeID != "zzzz0001" {
		t.Fatalf("FindAnywhere = (%q, %v, %v), want (zzzz0001, true, nil)", changeID, found, err)
	}
	if !strings.Contains(strings.Join(r.lastArgs, " "), "all()") {
		t.Errorf("FindAnywhere should query all(), got args=%v", r.lastArgs)
	}
}

func TestFindAboveHead(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	r := &fakeRunner{logOutput: ""}
	q := New(vcs.New(r))

	_, found, err := q.FindAboveHead(context.Background(), s)
	if err != nil || found {
		t.Fatalf("FindAboveHead = (_, %v, %v), want (false, nil)", found, err)
	}
	if !strings.Contains(strings.Join(r.lastArgs, " "), "descendants(@)") {
		t.Errorf("FindAboveHead should restrict to descendants(@), got args=%v", r.lastArgs)
	}
}

func TestPartCount(t *testing.T) {
	t.Parallel()

	s := session.NewID("abcd1234-full")
	out := logRecord("zzzz0001", "jjagent: session abcd1234\n\nClaude-session-id: abcd1234-full") +
		logRecord("zzzz0002", "jjagent: session abcd1234 pt. 2\n\nClaude-session-id: abcd1234-full")
	r := &fakeRunner{logOutput: out}
	q := New(vcs.New(r))

	n, err := q.PartCount(context.Background(), s)
	if err != nil || n != 2 {
		t.Fatalf("PartCount = (%d, %v), want (2, nil)", n, err)
	}
}
