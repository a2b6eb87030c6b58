// Package config reads jjagent's process-level configuration from the
// environment. There is no config file: every hook invocation is a short
// lived subprocess spawned by the host assistant, so environment variables
// set in its settings are the only practical channel; the host
// assistant's own process and settings file format are out of scope here.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the resolved set of tunables for one process invocation.
type Config struct {
	// Disabled short-circuits every hook handler to a no-op pass-through
	// when true. Set via JJAGENT_DISABLE=1.
	Disabled bool

	// PostToolDelay is how long the PostTool handler waits before
	// finalizing the precommit, giving the assistant's own file writes
	// a moment to settle. Set via JJAGENT_POSTTOOL_DELAY_MS.
	PostToolDelay time.Duration

	// LogLevel is the minimum slog level to emit. Set via JJAGENT_LOG
	// (debug|info|warn|error). Defaults to "info".
	LogLevel string

	// LogFile, if non-empty, is where structured logs are written
	// instead of stderr. Set via JJAGENT_LOG_FILE.
	LogFile string

	// TelemetryDisabled opts out of anonymous usage telemetry. Set via
	// JJAGENT_TELEMETRY_DISABLE=1 (also honors the common DO_NOT_TRACK).
	TelemetryDisabled bool

	// CommitPrefix replaces the default "jjagent" prefix on generated
	// commit titles. Set via JJAGENT_COMMIT_PREFIX.
	CommitPrefix string
}

const defaultPostToolDelay = 0

// FromEnv reads Config from the process environment, applying defaults
// for anything unset or unparseable.
func FromEnv() Config {
	c := Config{
		Disabled:          boolEnv("JJAGENT_DISABLE", false),
		PostToolDelay:     durMillisEnv("JJAGENT_POSTTOOL_DELAY_MS", defaultPostToolDelay),
		LogLevel:          stringEnv("JJAGENT_LOG", "info"),
		LogFile:           stringEnv("JJAGENT_LOG_FILE", ""),
		TelemetryDisabled: boolEnv("JJAGENT_TELEMETRY_DISABLE", false) || boolEnv("DO_NOT_TRACK", false),
		CommitPrefix:      stringEnv("JJAGENT_COMMIT_PREFIX", "jjagent"),
	}
	return c
}

func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durMillisEnv(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
