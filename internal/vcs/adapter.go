// Package vcs wraps the jj (Jujutsu) command-line binary as a set of typed
// operations. Every mutation of and query against the repository goes
// through this layer: each operation is a single
// subprocess invocation, stdout is captured, and a non-zero exit becomes a
// *vcs.Error carrying stderr.
package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jjagent-oss/jjagent/internal/session"
)

// fieldSep/recordSep delimit the change_id/description pairs emitted by
// logTemplate. Using control characters instead of a textual marker (the
// upstream Rust implementation used a literal "---\n" line) means a commit
// description that happens to contain that text can never corrupt parsing.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

const logTemplate = `change_id.short() ++ "` + fieldSep + `" ++ description ++ "` + recordSep + `"`

// Adapter is the VCS Adapter (Component A). All methods issue exactly one
// jj subprocess call unless documented otherwise.
type Adapter struct {
	Runner Runner
}

// New returns an Adapter bound to runner.
func New(runner Runner) *Adapter {
	return &Adapter{Runner: runner}
}

// Commit is one change_id/description pair parsed from logTemplate output.
type Commit struct {
	ChangeID    string
	Description string
}

func parseLogOutput(out string) []Commit {
	var records []Commit
	for _, rec := range strings.Split(out, recordSep) {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.SplitN(rec, fieldSep, 2)
		if len(parts) != 2 {
			continue
		}
		records = append(records, Commit{
			ChangeID:    strings.TrimSpace(parts[0]),
			Description: parts[1],
		})
	}
	return records
}

// RevisionsInOrder returns every commit matched by revset, in jj's default
// log order (children before parents). Used by the conflict path to scan
// ancestors nearest-first.
func (a *Adapter) RevisionsInOrder(ctx context.Context, revset string) ([]Commit, error) {
	out, err := a.Runner.Run(ctx, "log", "log", "-r", revset, "-T", logTemplate, "--no-graph", "--ignore-working-copy")
	if err != nil {
		return nil, err
	}
	return parseLogOutput(out), nil
}

// IsRepo reports whether the current directory is inside a jj repository.
// Implemented as `jj root`; any failure (including "not a repo") is false,
// never an error.
func (a *Adapter) IsRepo(ctx context.Context) bool {
	_, err := a.Runner.Run(ctx, "root", "root")
	return err == nil
}

// IsAtHead reports whether @ has no descendants.
func (a *Adapter) IsAtHead(ctx context.Context) (bool, error) {
	out, err := a.Runner.Run(ctx, "log",
		"log", "-r", "descendants(@) ~ @", "-T", "change_id.short()", "--no-graph", "--ignore-working-copy")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// HasConflicts reports whether revset resolves to any commit with
// conflicts, e.g. HasConflicts(ctx, "@").
func (a *Adapter) HasConflicts(ctx context.Context, revset string) (bool, error) {
	r := fmt.Sprintf("conflicts() & (%s)", revset)
	out, err := a.Runner.Run(ctx, "log",
		"log", "-r", r, "-T", "change_id.short()", "--no-graph", "--ignore-working-copy")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// GetChangeID resolves revset to a single change-id. Errors if revset
// matches nothing.
func (a *Adapter) GetChangeID(ctx context.Context, revset string) (string, error) {
	out, err := a.Runner.Run(ctx, "log",
		"log", "-r", revset, "-T", "change_id.short()", "--no-graph", "--ignore-working-copy")
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", &Error{Op: "log", Args: []string{revset}, Err: fmt.Errorf("no change found for revset %q", revset)}
	}
	return id, nil
}

// GetDescription returns the raw description of revset.
func (a *Adapter) GetDescription(ctx context.Context, revset string) (string, error) {
	out, err := a.Runner.Run(ctx, "log",
		"log", "-r", revset, "-T", "description", "--no-graph", "--ignore-working-copy")
	if err != nil {
		return "", err
	}
	return out, nil
}

// GetTrailers returns the ordered trailer list parsed out of revset's
// description.
func (a *Adapter) GetTrailers(ctx context.Context, revset string) ([]session.Trailer, error) {
	desc, err := a.GetDescription(ctx, revset)
	if err != nil {
		return nil, err
	}
	_, trailers := session.ParseMessage(desc)
	return trailers, nil
}

// CurrentSessionIDTrailer returns the Claude-session-id trailer on @, if
// present.
func (a *Adapter) CurrentSessionIDTrailer(ctx context.Context) (session.ID, bool, error) {
	return a.trailerOn(ctx, "@", session.TrailerSessionID)
}

// CurrentPrecommitTrailer returns the Claude-precommit-session-id trailer
// on @, if present.
func (a *Adapter) CurrentPrecommitTrailer(ctx context.Context) (session.ID, bool, error) {
	return a.trailerOn(ctx, "@", session.TrailerPrecommitSessionID)
}

func (a *Adapter) trailerOn(ctx context.Context, revset, key string) (session.ID, bool, error) {
	trailers, err := a.GetTrailers(ctx, revset)
	if err != nil {
		return session.ID{}, false, err
	}
	v, ok := session.LastTrailer(trailers, key)
	if !ok {
		return session.ID{}, false, nil
	}
	return session.NewID(v), true, nil
}

// Scope controls which commits FindCommitBySession considers.
type Scope int

const (
	// ScopeDescendants restricts the search to (descendants(@) ~ @).
	ScopeDescendants Scope = iota
	// ScopeAnywhere searches all() with no positional restriction.
	ScopeAnywhere
)

// FindCommitBySession locates a commit carrying Claude-session-id == id,
// excluding immutable() commits. Returns ("", false, nil) if
// none match.
func (a *Adapter) FindCommitBySession(ctx context.Context, id session.ID, scope Scope) (string, bool, error) {
	revset := a.sessionRevset(id, scope)
	args := []string{"log", "-r", revset, "-T", logTemplate, "--no-graph", "--ignore-working-copy"}
	if scope == ScopeDescendants {
		// jj lists children before parents; reverse so the descendant
		// nearest to @ comes first.
		args = append(args, "--reversed")
	}
	out, err := a.Runner.Run(ctx, "log", args...)
	if err != nil {
		return "", false, err
	}
	for _, rec := range parseLogOutput(out) {
		_, trailers := session.ParseMessage(rec.Description)
		if v, ok := session.LastTrailer(trailers, session.TrailerSessionID); ok && v == id.Full() {
			return rec.ChangeID, true, nil
		}
	}
	return "", false, nil
}

// CountCommitsBySession counts commits (excluding immutable()) whose last
// Claude-session-id trailer equals id.
func (a *Adapter) CountCommitsBySession(ctx context.Context, id session.ID) (int, error) {
	revset := a.sessionRevset(id, ScopeAnywhere)
	out, err := a.Runner.Run(ctx, "log", "log", "-r", revset, "-T", logTemplate, "--no-graph", "--ignore-working-copy")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range parseLogOutput(out) {
		_, trailers := session.ParseMessage(rec.Description)
		if v, ok := session.LastTrailer(trailers, session.TrailerSessionID); ok && v == id.Full() {
			count++
		}
	}
	return count, nil
}

func (a *Adapter) sessionRevset(id session.ID, scope Scope) string {
	descFilter := fmt.Sprintf("description(%q)", id.Full())
	switch scope {
	case ScopeDescendants:
		return fmt.Sprintf("(descendants(@) ~ @) & %s & ~immutable()", descFilter)
	default:
		return fmt.Sprintf("all() & %s & ~immutable()", descFilter)
	}
}

// CountConflicts counts conflicted commits in changeID and its
// descendants: conflicts() & (changeID:: | changeID).
func (a *Adapter) CountConflicts(ctx context.Context, changeID string) (int, error) {
	return a.CountConflictsIn(ctx, fmt.Sprintf("%s:: | %s", changeID, changeID))
}

// CountConflictsAll counts every conflicted commit in the repository:
// conflicts() & all().
func (a *Adapter) CountConflictsAll(ctx context.Context) (int, error) {
	return a.CountConflictsIn(ctx, "all()")
}

// CountConflictsIn counts conflicted commits within revset.
func (a *Adapter) CountConflictsIn(ctx context.Context, revset string) (int, error) {
	r := fmt.Sprintf("conflicts() & (%s)", revset)
	out, err := a.Runner.Run(ctx, "log", "log", "-r", r, "-T", "change_id.short()", "--no-graph", "--ignore-working-copy")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

// NewOptions configures Adapter.New.
type NewOptions struct {
	// InsertBefore is a revset for --insert-before; empty means omit.
	InsertBefore string
	// Edit, when true, moves @ to the newly created commit (omits
	// --no-edit).
	Edit bool
	// Message is the initial description; empty means omit -m.
	Message string
}

// New creates a commit via `jj new`.
func (a *Adapter) New(ctx context.Context, opts NewOptions) error {
	args := []string{"new"}
	if opts.InsertBefore != "" {
		args = append(args, "--insert-before", opts.InsertBefore)
	}
	if !opts.Edit {
		args = append(args, "--no-edit")
	}
	if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	args = append(args, "--ignore-working-copy")
	_, err := a.Runner.Run(ctx, "new", args...)
	return err
}

// Describe rewrites revset's description. Empty revset means @.
func (a *Adapter) Describe(ctx context.Context, revset, message string) error {
	args := []string{"describe"}
	if revset != "" {
		args = append(args, "-r", revset)
	}
	args = append(args, "-m", message, "--ignore-working-copy")
	_, err := a.Runner.Run(ctx, "describe", args...)
	return err
}

// SquashOptions configures Adapter.Squash.
type SquashOptions struct {
	// From is the source revset; empty means @ (jj's default).
	From string
	// Into is the destination revset (required).
	Into string
	// UseDestinationMessage keeps Into's description instead of
	// prompting/merging messages.
	UseDestinationMessage bool
	// Message overrides the resulting description outright; mutually
	// exclusive with UseDestinationMessage in practice.
	Message string
}

// Squash folds From's diff into Into via `jj squash`.
func (a *Adapter) Squash(ctx context.Context, opts SquashOptions) error {
	args := []string{"squash"}
	if opts.From != "" {
		args = append(args, "--from", opts.From)
	}
	args = append(args, "--into", opts.Into)
	if opts.UseDestinationMessage {
		args = append(args, "--use-destination-message")
	}
	if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	args = append(args, "--ignore-working-copy")
	_, err := a.Runner.Run(ctx, "squash", args...)
	return err
}

// Rebase moves changeID via `jj rebase -r changeID --insert-before before`.
func (a *Adapter) Rebase(ctx context.Context, changeID, before string) error {
	_, err := a.Runner.Run(ctx, "rebase",
		"rebase", "-r", changeID, "--insert-before", before, "--ignore-working-copy")
	return err
}

// Edit moves @ to changeID.
func (a *Adapter) Edit(ctx context.Context, changeID string) error {
	_, err := a.Runner.Run(ctx, "edit", "edit", changeID, "--ignore-working-copy")
	return err
}

// Undo reverts the last operation on the operation log.
func (a *Adapter) Undo(ctx context.Context) error {
	_, err := a.Runner.Run(ctx, "undo", "undo", "--ignore-working-copy")
	return err
}

// WorkspaceUpdateStale resyncs the working copy after a concurrent
// snapshot by another process. jj reports an error when the workspace
// isn't actually stale; that specific case is not a failure here.
func (a *Adapter) WorkspaceUpdateStale(ctx context.Context) error {
	_, err := a.Runner.Run(ctx, "workspace-update-stale", "workspace", "update-stale")
	if err == nil {
		return nil
	}
	var verr *Error
	if ok := asError(err, &verr); ok && strings.Contains(strings.ToLower(verr.Stderr), "not stale") {
		return nil
	}
	return err
}

// DiffIsEmpty reports whether @ has no changes against its parent.
func (a *Adapter) DiffIsEmpty(ctx context.Context) (bool, error) {
	out, err := a.DiffText(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// DiffText returns @'s unified diff against its parent, in git format.
func (a *Adapter) DiffText(ctx context.Context) (string, error) {
	return a.Runner.Run(ctx, "diff", "diff", "--git", "--ignore-working-copy")
}

// Root returns the repository root path.
func (a *Adapter) Root(ctx context.Context) (string, error) {
	out, err := a.Runner.Run(ctx, "root", "root")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Version returns the raw output of `jj --version`.
func (a *Adapter) Version(ctx context.Context) (string, error) {
	out, err := a.Runner.Run(ctx, "version", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
