// Package lock implements the working-copy lock (Component D): a
// cross-process mutual exclusion built on the existence of one file inside
// the VCS metadata directory, rather than an OS advisory flock. The
// acquiring process (PreTool) exits before the releasing process
// (PostTool/Stop) starts, so no file descriptor can bridge them: the two
// processes never overlap in memory.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/jjagent-oss/jjagent/internal/logging"
)

// Filename is the lock file's name inside the VCS metadata directory.
const Filename = "jjagent-wc.lock"

const (
	staleAfter      = 5 * time.Minute
	totalTimeout    = 5 * time.Minute
	initialBackoff  = 100 * time.Millisecond
	maxBackoff      = 5 * time.Second
	progressEvery   = 10 * time.Second
)

// Metadata is the JSON body written into the lock file.
type Metadata struct {
	PID        int    `json:"pid"`
	SessionID  string `json:"session_id"`
	AcquiredAt int64  `json:"acquired_at"`
	// MachineID is a diagnostic aid only (not used for correctness): it
	// helps a human operator tell whether a stale lock was left by this
	// machine or another one sharing the repository over a network
	// filesystem.
	MachineID string `json:"machine_id,omitempty"`
}

// Lock is a handle on one acquired lock file.
type Lock struct {
	path      string
	sessionID string
}

// Path returns the lock file path for a VCS metadata directory (e.g.
// ".jj" or ".git").
func Path(metadataDir string) string {
	return filepath.Join(metadataDir, Filename)
}

// ErrTimeout is returned by Acquire when the total wait is exceeded.
type ErrTimeout struct {
	HolderSessionID string
	Age             time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for lock held by session %s (age %s)", e.HolderSessionID, e.Age.Round(time.Second))
}

// ErrOwnershipMismatch is returned by Release when the lock file's
// session_id doesn't match ours, meaning another session stole it after
// declaring it stale.
type ErrOwnershipMismatch struct {
	Expected string
	Found    string
}

func (e *ErrOwnershipMismatch) Error() string {
	return fmt.Sprintf("lock ownership mismatch: expected session %s, found %s", e.Expected, e.Found)
}

// Acquire implements the lock acquisition protocol. metadataDir is the VCS
// metadata directory (e.g. the output of `jj root`+"/.jj"); sessionID
// identifies the caller.
func Acquire(ctx context.Context, metadataDir, sessionID string) (*Lock, error) {
	ctx = logging.WithComponent(ctx, "lock")
	path := Path(metadataDir)

	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata dir: %w", err)
	}

	deadline := time.Now().Add(totalTimeout)
	backoff := initialBackoff
	lastProgress := time.Now()

	for {
		ok, meta, err := tryCreate(path, sessionID)
		if err != nil {
			return nil, err
		}
		if ok {
			logging.Debug(ctx, "lock acquired", "session_id", sessionID)
			return &Lock{path: path, sessionID: sessionID}, nil
		}

		// meta is the existing holder's metadata (nil if unreadable).
		if meta != nil {
			age := time.Since(time.Unix(meta.AcquiredAt, 0))
			if age > staleAfter {
				logging.Info(ctx, "reclaiming stale lock", "holder_session_id", meta.SessionID, "age", age.String())
				_ = os.Remove(path)
				continue
			}
			if time.Since(lastProgress) >= progressEvery {
				fmt.Fprintf(os.Stderr, "jjagent: waiting for working-copy lock held by session %s (age %s)\n", meta.SessionID, age.Round(time.Second))
				lastProgress = time.Now()
			}
		}

		if time.Now().After(deadline) {
			holder := ""
			var age time.Duration
			if meta != nil {
				holder = meta.SessionID
				age = time.Since(time.Unix(meta.AcquiredAt, 0))
			}
			return nil, &ErrTimeout{HolderSessionID: holder, Age: age}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// tryCreate attempts an atomic create-exclusive of the lock file. If it
// already exists, its parsed metadata is returned (nil if the file
// couldn't be read/parsed) so the caller can judge staleness.
func tryCreate(path, sessionID string) (created bool, holder *Metadata, err error) {
	meta := Metadata{
		PID:        os.Getpid(),
		SessionID:  sessionID,
		AcquiredAt: time.Now().Unix(),
	}
	if id, idErr := machineid.ID(); idErr == nil {
		meta.MachineID = id
	}

	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if openErr == nil {
		defer f.Close()
		enc := json.NewEncoder(f)
		if encErr := enc.Encode(meta); encErr != nil {
			return false, nil, fmt.Errorf("writing lock file: %w", encErr)
		}
		if syncErr := f.Sync(); syncErr != nil {
			return false, nil, fmt.Errorf("fsyncing lock file: %w", syncErr)
		}
		return true, nil, nil
	}
	if !os.IsExist(openErr) {
		return false, nil, fmt.Errorf("creating lock file: %w", openErr)
	}

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		// Lost a race with the releaser between the failed create and
		// this read; treat as "no readable holder" and let the caller
		// retry after its next backoff.
		return false, nil, nil
	}
	var existing Metadata
	if jsonErr := json.Unmarshal(raw, &existing); jsonErr != nil {
		return false, nil, nil
	}
	return false, &existing, nil
}

// Release implements the release protocol: verify ownership, then unlink.
func Release(ctx context.Context, l *Lock) error {
	return release(ctx, l.path, l.sessionID)
}

// ReleaseByID releases the lock in metadataDir on behalf of sessionID
// without requiring the in-memory *Lock returned by Acquire. PostTool and
// Stop run as fresh processes that never called Acquire themselves, so
// they identify the lock to release by session id alone.
func ReleaseByID(ctx context.Context, metadataDir, sessionID string) error {
	return release(ctx, Path(metadataDir), sessionID)
}

func release(ctx context.Context, path, sessionID string) error {
	ctx = logging.WithComponent(ctx, "lock")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already gone (e.g. reclaimed as stale by someone else);
			// nothing left to release.
			return nil
		}
		return fmt.Errorf("reading lock file for release: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("parsing lock file for release: %w", err)
	}
	if meta.SessionID != sessionID {
		err := &ErrOwnershipMismatch{Expected: sessionID, Found: meta.SessionID}
		logging.Warn(ctx, "lock release ownership mismatch", "expected_session_id", sessionID, "found_session_id", meta.SessionID)
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	logging.Debug(ctx, "lock released", "session_id", sessionID)
	return nil
}
