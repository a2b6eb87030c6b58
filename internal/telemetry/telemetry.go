// Package telemetry sends anonymous usage events: session_created,
// part_created, conflict_handled. No session content, file names, or
// commit messages are ever included — only that the event occurred.
// Telemetry is on unless JJAGENT_TELEMETRY_DISABLE or DO_NOT_TRACK is set
// to a true value; requests use a fast-timeout transport.
package telemetry

import (
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/jjagent-oss/jjagent/internal/config"
)

var (
	// apiKey is overridden at release build time via -ldflags.
	apiKey   = "phc_development_key"
	endpoint = "https://eu.i.posthog.com"
)

// Client emits jjagent lifecycle events.
type Client interface {
	SessionCreated(sessionID string)
	PartCreated(sessionID string, part int)
	ConflictHandled(sessionID string)
	Close()
}

// NoOpClient discards every event; used whenever telemetry is disabled or
// the client failed to construct.
type NoOpClient struct{}

func (NoOpClient) SessionCreated(string)   {}
func (NoOpClient) PartCreated(string, int) {}
func (NoOpClient) ConflictHandled(string)  {}
func (NoOpClient) Close()                  {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...interface{})   {}
func (silentLogger) Debugf(string, ...interface{}) {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}

type postHogClient struct {
	client    posthog.Client
	machineID string
}

// NewClient builds a Client from cfg, returning NoOpClient if telemetry is
// disabled or the underlying client can't be constructed. machineID should
// be a salted/anonymous identifier; the CLI passes machineid.ProtectedID,
// not the raw machine id that lock.Metadata.MachineID records.
func NewClient(cfg config.Config, machineID string) Client {
	if cfg.TelemetryDisabled {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 150 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   150 * time.Millisecond,
		ResponseHeaderTimeout: 150 * time.Millisecond,
	}

	c, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint:           endpoint,
		ShutdownTimeout:    150 * time.Millisecond,
		BatchUploadTimeout: 250 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}
	return &postHogClient{client: c, machineID: machineID}
}

func (p *postHogClient) capture(event, sessionID string, extra map[string]any) {
	props := posthog.NewProperties()
	for k, v := range extra {
		props.Set(k, v)
	}
	_ = p.client.Enqueue(posthog.Capture{
		DistinctId: p.machineID,
		Event:      event,
		Properties: props,
	})
}

func (p *postHogClient) SessionCreated(sessionID string) {
	p.capture("session_created", sessionID, nil)
}

func (p *postHogClient) PartCreated(sessionID string, part int) {
	p.capture("part_created", sessionID, map[string]any{"part": part})
}

func (p *postHogClient) ConflictHandled(sessionID string) {
	p.capture("conflict_handled", sessionID, nil)
}

func (p *postHogClient) Close() {
	_ = p.client.Close()
}
