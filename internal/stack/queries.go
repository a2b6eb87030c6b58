// Package stack implements the commit-stack queries (Component C):
// locating a session's commit by SessionId, counting its parts, and
// deciding when the result should be treated as absent because the only
// matches are immutable.
package stack

import (
	"context"

	"github.com/jjagent-oss/jjagent/internal/session"
	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// Queries wraps a vcs.Adapter with the two commit-stack search modes.
type Queries struct {
	VCS *vcs.Adapter
}

// New returns a Queries bound to a.
func New(a *vcs.Adapter) *Queries {
	return &Queries{VCS: a}
}

// FindAnywhere searches all() & description(s) & ~immutable(), used by
// PostTool/Stop to locate or decide to create the session commit.
func (q *Queries) FindAnywhere(ctx context.Context, s session.ID) (changeID string, found bool, err error) {
	return q.VCS.FindCommitBySession(ctx, s, vcs.ScopeAnywhere)
}

// FindAboveHead searches (descendants(@) ~ @) & description(s) &
// ~immutable(), ordered nearest-first. Used pre-creation to detect that a
// session commit already exists above the current position.
func (q *Queries) FindAboveHead(ctx context.Context, s session.ID) (changeID string, found bool, err error) {
	return q.VCS.FindCommitBySession(ctx, s, vcs.ScopeDescendants)
}

// PartCount returns the number of non-immutable commits carrying session
// s's trailer; the next part number, when a conflict forces a new part, is
// PartCount+1.
func (q *Queries) PartCount(ctx context.Context, s session.ID) (int, error) {
	return q.VCS.CountCommitsBySession(ctx, s)
}
