package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"testing"
)

func TestNewRootCmdRegistersExpectedSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	want := []string{"claude", "change-id", "session-id", "describe", "split", "move-session-into", "doctor", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("NewRootCmd() missing subcommand %q", name)
		}
	}
}

func TestNewClaudeCmdRegistersHookGroupAndConvenienceCommands(t *testing.T) {
	t.Parallel()

	claude := newClaudeCmd()
	want := []string{"hooks", "settings", "start", "resume"}
	for _, name := range want {
		cmd, _, err := claude.Find([]string{name})
		if err != nil || cmd == claude {
			t.Errorf("newClaudeCmd() missing subcommand %q", name)
		}
	}
}

func TestNewHooksCmdRegistersAllFourLifecycleEvents(t *testing.T) {
	t.Parallel()

	hooks := newHooksCmd()
	for _, event := range []string{"PreToolUse", "PostToolUse", "Stop", "UserPromptSubmit"} {
		cmd, _, err := hooks.Find([]string{event})
		if err != nil || cmd == hooks {
			t.Errorf("newHooksCmd() missing subcommand %q", event)
		}
	}
}

func TestHookSettingsMatchesFileToolsOnEditAndWrite(t *testing.T) {
	t.Parallel()

	settings := hookSettings("jjagent")
	hooksRaw, ok := settings["hooks"].(map[string]any)
	if !ok {
		t.Fatalf("hookSettings()[\"hooks\"] = %T, want map[string]any", settings["hooks"])
	}

	preTool, ok := hooksRaw["PreToolUse"].([]hookEntry)
	if !ok || len(preTool) != 1 {
		t.Fatalf("hookSettings() PreToolUse = %#v, want a single hookEntry", hooksRaw["PreToolUse"])
	}
	if preTool[0].Matcher != "Edit|Write|MultiEdit|NotebookEdit" {
		t.Errorf("PreToolUse matcher = %q, want the file-write tool matcher", preTool[0].Matcher)
	}
	if len(preTool[0].Hooks) != 1 || preTool[0].Hooks[0].Command != "jjagent claude hooks PreToolUse" {
		t.Errorf("PreToolUse hook command = %#v, want a single jjagent invocation", preTool[0].Hooks)
	}

	stop, ok := hooksRaw["Stop"].([]hookEntry)
	if !ok || len(stop) != 1 || stop[0].Matcher != "" {
		t.Errorf("hookSettings() Stop = %#v, want an unmatched hookEntry", hooksRaw["Stop"])
	}
}

func TestHookSettingsRoundTripsThroughJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(hookSettings("jjagent")); err != nil {
		t.Fatalf("json.Encode(hookSettings()) error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if _, ok := decoded["hooks"]; !ok {
		t.Error("decoded settings JSON missing top-level \"hooks\" key")
	}
}

func TestNewSettingsCmdPrintsValidJSON(t *testing.T) {
	t.Parallel()

	cmd := newSettingsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("settings RunE() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("settings output is not valid JSON: %v\noutput: %s", err, out.String())
	}
}

func TestLooksLikeSessionID(t *testing.T) {
	t.Parallel()

	if !looksLikeSessionID("3fa85f64-5717-4562-b3fc-2c963f66afa6") {
		t.Error("looksLikeSessionID() = false for a well-formed UUID, want true")
	}
	if looksLikeSessionID("my-bookmark") {
		t.Error("looksLikeSessionID() = true for a short ref-like string, want false")
	}
	if looksLikeSessionID("") {
		t.Error("looksLikeSessionID() = true for an empty string, want false")
	}
}

func TestWriteSettingsTempFileProducesValidJSON(t *testing.T) {
	t.Parallel()

	path, err := writeSettingsTempFile()
	if err != nil {
		t.Fatalf("writeSettingsTempFile() error = %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp settings file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("temp settings file is not valid JSON: %v\ncontent: %s", err, data)
	}
	if _, ok := decoded["hooks"]; !ok {
		t.Error("temp settings file missing top-level \"hooks\" key")
	}
}

func TestVersionTemplateIncludesGoRuntimeAndPlatform(t *testing.T) {
	t.Parallel()

	tmpl := versionTemplate()
	if !strings.Contains(tmpl, "{{.Version}}") {
		t.Errorf("versionTemplate() = %q, want it to reference .Version", tmpl)
	}
	for _, want := range []string{runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH} {
		if !strings.Contains(tmpl, want) {
			t.Errorf("versionTemplate() = %q, want it to contain %q", tmpl, want)
		}
	}
}

func TestNewVersionCmdPrintsVersion(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("version RunE() error = %v", err)
	}
	if !strings.Contains(out.String(), "jjagent") {
		t.Errorf("version output = %q, want it to mention jjagent", out.String())
	}
}
