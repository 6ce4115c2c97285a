// Package observe carries run lifecycle events from the engine to pluggable
// sinks: logs, traces, and the sqlite audit store.
package observe

import (
	"strings"
	"time"
)

// EventType classifies a run lifecycle event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventRunFinished  EventType = "run_finished"
	EventRunFailed    EventType = "run_failed"
	EventModelCall    EventType = "model_call"
	EventToolCalled   EventType = "tool_called"
	EventToolFinished EventType = "tool_finished"
	EventToolFailed   EventType = "tool_failed"
)

// Event is one observation from a run.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"runId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Time      time.Time      `json:"time"`
}

// Normalize fills defaults so sinks never see a half-formed event.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	e.Type = EventType(strings.TrimSpace(string(e.Type)))
	if e.Type == "" {
		e.Type = "unknown"
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
}
