// Package vcsutil holds small helpers around the jj binary that don't
// belong on the Adapter itself, starting with version gating.
package vcsutil

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"

	"github.com/jjagent-oss/jjagent/internal/vcs"
)

// MinVersion is the oldest jj release this tool is known to work with:
// --insert-before and --ignore-working-copy on the commands this package
// uses both require it.
const MinVersion = "v0.17.0"

var versionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// CheckVersion runs `jj --version`, extracts the embedded semver, and
// errors if it is older than MinVersion. The comparison is skipped (nil
// returned) if the version string can't be parsed, since jj's output
// format isn't contractual across forks/distros.
func CheckVersion(ctx context.Context, a *vcs.Adapter) error {
	raw, err := a.Version(ctx)
	if err != nil {
		return fmt.Errorf("checking jj version: %w", err)
	}
	m := versionPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	v := "v" + m[1]
	if !semver.IsValid(v) {
		return nil
	}
	if semver.Compare(v, MinVersion) < 0 {
		return fmt.Errorf("jj version %s is older than the minimum supported %s", v, MinVersion)
	}
	return nil
}
