// Package hookio implements the hook process's stdin/stdout contract:
// exactly one JSON object read from stdin, exactly one JSON object
// written to stdout, per invocation.
package hookio

import (
	"encoding/json"
	"io"
)

// Input is the hook invocation payload the host assistant writes to
// stdin. Unknown fields are ignored by encoding/json's default decoding.
type Input struct {
	SessionID      string `json:"session_id"`
	ToolName       string `json:"tool_name,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// HookSpecificOutput carries the optional context-injection payload.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Output is the hook response payload written to stdout.
type Output struct {
	Continue           bool                `json:"continue"`
	StopReason         string              `json:"stopReason,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// Continue is the default success response.
func Continue() Output {
	return Output{Continue: true}
}

// Stop aborts the tool call with a diagnostic shown to the host/user.
func Stop(reason string) Output {
	return Output{Continue: false, StopReason: reason}
}

// ContinueWithContext succeeds while injecting additionalContext back
// into the assistant's context window, tagged with the originating event.
func ContinueWithContext(event, additionalContext string) Output {
	return Output{
		Continue: true,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     event,
			AdditionalContext: additionalContext,
		},
	}
}

// ReadInput parses exactly one Input from r.
func ReadInput(r io.Reader) (Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// WriteOutput writes exactly one Output to w as a single JSON object.
func WriteOutput(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}
