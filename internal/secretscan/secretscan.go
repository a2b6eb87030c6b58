// Package secretscan runs an advisory gitleaks pass over a precommit's
// diff before it is squashed into the session commit. It never blocks the
// orchestrator: a detection is logged as a warning, not surfaced as an
// error, since scanning secrets out of history is not this system's job
// (changing merge/conflict semantics is out of scope here; this is
// a log-only enrichment, not a new blocking behavior).
package secretscan

import (
	"context"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/jjagent-oss/jjagent/internal/logging"
)

var (
	detector     *detect.Detector
	detectorOnce sync.Once
)

func getDetector() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

// Finding is one gitleaks match, reduced to what's useful in a log line.
type Finding struct {
	RuleID string
	File   string
}

// Scan inspects gitDiff (the output of `jj diff --git`) and logs a
// warning per rule matched. It never returns an error: a scanner failure
// (e.g. the default ruleset couldn't load) is itself logged and treated
// as "nothing found".
func Scan(ctx context.Context, sessionID, gitDiff string) []Finding {
	ctx = logging.WithComponent(ctx, "secretscan")

	d := getDetector()
	if d == nil {
		logging.Warn(ctx, "secret scanner unavailable, skipping scan", "session_id", sessionID)
		return nil
	}

	fragments := d.DetectString(gitDiff)
	if len(fragments) == 0 {
		return nil
	}

	findings := make([]Finding, 0, len(fragments))
	for _, f := range fragments {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{RuleID: f.RuleID, File: f.File})
		logging.Warn(ctx, "possible secret in precommit diff",
			"session_id", sessionID, "rule_id", f.RuleID, "file", f.File)
	}
	return findings
}
