// Package session provides session identity and the commit-message/trailer
// conventions the orchestrator uses to attribute commits to Claude Code
// sessions.
package session

// ShortLen is the number of leading characters of a full session ID used
// in human-readable commit titles.
const ShortLen = 8

// ID is a Claude Code session identifier. Two IDs compare equal iff their
// full forms compare equal; the short form exists only for display.
type ID struct {
	full string
}

// NewID wraps a full session ID string as reported by the host assistant.
func NewID(full string) ID {
	return ID{full: full}
}

// Full returns the full session ID.
func (s ID) Full() string {
	return s.full
}

// Short returns the first ShortLen characters (runes, not bytes) of the
// full ID, used in commit titles. If the full ID has ShortLen runes or
// fewer, it is returned unchanged.
func (s ID) Short() string {
	runes := []rune(s.full)
	if len(runes) <= ShortLen {
		return s.full
	}
	return string(runes[:ShortLen])
}

// Equal reports whether two session IDs have the same full form.
func (s ID) Equal(other ID) bool {
	return s.full == other.full
}

// IsZero reports whether this is the empty session ID.
func (s ID) IsZero() bool {
	return s.full == ""
}

func (s ID) String() string {
	return s.full
}

// NotFoundError reports that no commit carries the given session's
// trailer, where one was expected to exist or have just been created.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return "no commit found for session " + e.SessionID
}
