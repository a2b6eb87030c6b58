// Package diffstat summarizes the size of a precommit's diff for logging.
// It is independent of vcs.Adapter.DiffIsEmpty, which only answers
// empty-or-not; this package gives PostTool logging a human-meaningful
// "N lines changed across M files" figure without needing jj's own diff
// stat formatting.
package diffstat

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Summary is a coarse size measurement of one unified diff.
type Summary struct {
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// gitDiffHeaderPrefix marks the start of a new file's hunk in `jj diff
// --git` output.
const gitDiffHeaderPrefix = "diff --git "

// Summarize computes a Summary from the raw `jj diff --git` output. It
// does not attempt full patch semantics: it splits the output on
// "diff --git " headers and counts "+"/"-" lines in each block, skipping
// "+++"/"---" file-header lines, which is enough for a log line.
func Summarize(gitDiff string) Summary {
	var s Summary
	if strings.TrimSpace(gitDiff) == "" {
		return s
	}

	for _, block := range strings.Split(gitDiff, gitDiffHeaderPrefix) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		s.FilesChanged++
		added, removed := countHunkLines(block)
		s.LinesAdded += added
		s.LinesRemoved += removed
	}
	return s
}

func countHunkLines(block string) (added, removed int) {
	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// DiffOps runs diffmatchpatch's line-mode diff between two file
// contents and returns the resulting diff operations. No command in this
// repository calls it.
func DiffOps(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	wSrc, wDst, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(wSrc, wDst, false)
	return dmp.DiffCharsToLines(diffs, lines)
}
