package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Trailer keys the orchestrator recognizes.
const (
	TrailerSessionID           = "Claude-session-id"
	TrailerPrecommitSessionID  = "Claude-precommit-session-id"
)

// DefaultPrefix is prepended to every commit title this tool writes.
const DefaultPrefix = "jjagent"

var trailerKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// Trailer is one "Key: Value" line of an RFC-2822-style trailer block.
type Trailer struct {
	Key   string
	Value string
}

// FormatPrecommitMessage builds the title-only message for a precommit:
// "<prefix>: precommit <short>".
func FormatPrecommitMessage(prefix string, id ID) string {
	return fmt.Sprintf("%s: precommit %s", prefix, id.Short())
}

// FormatSessionMessage builds the title+trailer message for a session
// commit: "<prefix>: session <short>" followed by the session trailer.
func FormatSessionMessage(prefix string, id ID) string {
	title := fmt.Sprintf("%s: session %s", prefix, id.Short())
	return EncodeMessage(title, []Trailer{{Key: TrailerSessionID, Value: id.Full()}})
}

// FormatSessionPartMessage builds the title+trailer message for a session
// part commit: "<prefix>: session <short> pt. <k>" followed by the
// session trailer.
func FormatSessionPartMessage(prefix string, id ID, part int) string {
	title := fmt.Sprintf("%s: session %s pt. %d", prefix, id.Short(), part)
	return EncodeMessage(title, []Trailer{{Key: TrailerSessionID, Value: id.Full()}})
}

// FormatPrecommitTrailerMessage is like FormatPrecommitMessage but also
// carries the precommit trailer, used when the precommit needs to be
// identifiable by session (e.g. after a crash, before finalize_precommit
// re-establishes it from current_precommit_trailer()).
func FormatPrecommitTrailerMessage(prefix string, id ID) string {
	title := FormatPrecommitMessage(prefix, id)
	return EncodeMessage(title, []Trailer{{Key: TrailerPrecommitSessionID, Value: id.Full()}})
}

// EncodeMessage joins a title/body with a trailer block, separated by a
// single blank line. If trailers is empty, the title is returned as-is.
func EncodeMessage(titleBody string, trailers []Trailer) string {
	if len(trailers) == 0 {
		return titleBody
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(titleBody, "\n"))
	b.WriteString("\n\n")
	b.WriteString(EncodeTrailers(trailers))
	return b.String()
}

// EncodeTrailers renders trailers as "Key: Value" lines, one per line, in
// order. Keys are not validated here; callers that accept untrusted keys
// should use ValidTrailerKey first.
func EncodeTrailers(trailers []Trailer) string {
	lines := make([]string, 0, len(trailers))
	for _, t := range trailers {
		lines = append(lines, t.Key+": "+t.Value)
	}
	return strings.Join(lines, "\n")
}

// ValidTrailerKey reports whether key matches the trailer key grammar
// ^[A-Za-z][A-Za-z0-9-]*$.
func ValidTrailerKey(key string) bool {
	return trailerKeyPattern.MatchString(key)
}

// ParseMessage splits a commit description into its title-body and
// trailer block: the trailer block is the maximal run of
// "Key: Value" lines at the end of the message, preceded by a blank
// line. If no such block is found, all trailers are nil and titleBody
// is the whole description.
func ParseMessage(description string) (titleBody string, trailers []Trailer) {
	lines := strings.Split(description, "\n")

	// Trailing empty lines (e.g. the newline jj appends to every
	// description) end the message; they are not part of the trailer block.
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[:end]

	// Find the last blank line; everything after it is a trailer-block
	// candidate. Scan from the end, allowing only well-formed trailer
	// lines in that tail.
	blankIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			blankIdx = i
			break
		}
		if !isTrailerLine(lines[i]) {
			// A non-trailer, non-blank line appears before we found a
			// blank separator: there is no trailer block.
			return description, nil
		}
	}
	if blankIdx == -1 || blankIdx == len(lines)-1 {
		return description, nil
	}

	tail := lines[blankIdx+1:]
	for _, l := range tail {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if !isTrailerLine(l) {
			return description, nil
		}
	}

	titleBody = strings.Join(lines[:blankIdx], "\n")
	for _, l := range tail {
		if strings.TrimSpace(l) == "" {
			continue
		}
		key, value, _ := strings.Cut(l, ":")
		trailers = append(trailers, Trailer{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return titleBody, trailers
}

func isTrailerLine(line string) bool {
	key, _, found := strings.Cut(line, ":")
	if !found {
		return false
	}
	return ValidTrailerKey(strings.TrimSpace(key))
}

// LastTrailer returns the value of the last trailer with the given key,
// per the "last trailer is authoritative" rule.
func LastTrailer(trailers []Trailer, key string) (string, bool) {
	for i := len(trailers) - 1; i >= 0; i-- {
		if trailers[i].Key == key {
			return trailers[i].Value, true
		}
	}
	return "", false
}

// SetTrailer rewrites description's title-body, preserving all foreign
// trailers and normalizing the given key to a single trailer with value.
// If value is empty, all existing trailers with key are dropped instead.
func SetTrailer(description, key, value string) string {
	titleBody, trailers := ParseMessage(description)

	kept := make([]Trailer, 0, len(trailers)+1)
	for _, t := range trailers {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	if value != "" {
		kept = append(kept, Trailer{Key: key, Value: value})
	}
	return EncodeMessage(titleBody, kept)
}

// SetTitleBody rewrites description's title-body while leaving the
// trailer block untouched (used by "describe session").
func SetTitleBody(description, newTitleBody string) string {
	_, trailers := ParseMessage(description)
	return EncodeMessage(newTitleBody, trailers)
}

// ParsePartNumber extracts the "pt. N" suffix from a session-part title,
// or returns (0, false) if the title doesn't carry one.
func ParsePartNumber(titleBody string) (int, bool) {
	idx := strings.LastIndex(titleBody, " pt. ")
	if idx == -1 {
		return 0, false
	}
	firstLine := titleBody[idx+len(" pt. "):]
	if nl := strings.IndexByte(firstLine, '\n'); nl != -1 {
		firstLine = firstLine[:nl]
	}
	n, err := strconv.Atoi(strings.TrimSpace(firstLine))
	if err != nil {
		return 0, false
	}
	return n, true
}
