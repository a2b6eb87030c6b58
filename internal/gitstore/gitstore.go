// Package gitstore does read-only inspection of jj's colocated git
// backend (".jj/repo/store/git") for diagnostics. It never writes: every
// mutation in this tool goes through the jj subprocess; this
// package exists only to give `jjagent doctor` something independent of
// jj itself to cross-check against.
package gitstore

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Info is a snapshot of the colocated git backend's basic shape.
type Info struct {
	HeadHash    string
	HeadBranch  string
	CommitCount int
	PackedRefs  int
}

// backendPath returns the conventional location of jj's colocated git
// store beneath the jj repo root.
func backendPath(jjRoot string) string {
	return filepath.Join(jjRoot, ".jj", "repo", "store", "git")
}

// Inspect opens the git backend read-only and reports basic counters.
// Returns an error if the path isn't a valid git repository, which is
// expected for jj repos using the native backend instead of the git
// backend — callers treat that as "not applicable", not a hard failure.
func Inspect(jjRoot string) (Info, error) {
	repo, err := git.PlainOpen(backendPath(jjRoot))
	if err != nil {
		return Info{}, fmt.Errorf("opening colocated git backend: %w", err)
	}

	var info Info

	if head, err := repo.Head(); err == nil {
		info.HeadHash = head.Hash().String()
		info.HeadBranch = head.Name().Short()
	}

	refs, err := repo.References()
	if err == nil {
		_ = refs.ForEach(func(_ *plumbing.Reference) error {
			info.PackedRefs++
			return nil
		})
	}

	if head, err := repo.Head(); err == nil {
		commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
		if err == nil {
			_ = commits.ForEach(func(_ *object.Commit) error {
				info.CommitCount++
				return nil
			})
		}
	}

	return info, nil
}
