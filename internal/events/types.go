// Package events defines the internal event taxonomy of linkwatch, the
// pub/sub router that carries events from the supervisor to its consumers,
// and the JSON lines sink that records them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Daemon lifecycle
	EventDaemonStart    EventType = "daemon.start"
	EventDaemonStop     EventType = "daemon.stop"
	EventConfigReloaded EventType = "config.reloaded"

	// Supervisor state machine
	EventStateChanged       EventType = "state.changed"
	EventLinkConnected      EventType = "link.connected"
	EventLinkDisconnected   EventType = "link.disconnected"
	EventReconnectScheduled EventType = "reconnect.scheduled"
	EventReconnectSucceeded EventType = "reconnect.succeeded"
	EventReconnectFailed    EventType = "reconnect.failed"
	EventPollError          EventType = "poll.error"

	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceSupervisor = "supervisor"
	SourceDaemon     = "daemon"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	ID        string    `json:"id"`
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// DaemonStartEvent is emitted once the daemon is supervising an interface.
type DaemonStartEvent struct {
	BaseEvent
	Interface string `json:"interface"`
	PID       int    `json:"pid"`
}

// DaemonStopEvent is emitted when the daemon shuts down.
type DaemonStopEvent struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

// ConfigReloadedEvent is emitted after preferences or credentials are
// re-read.
type ConfigReloadedEvent struct {
	BaseEvent
	Trigger  string `json:"trigger"` // signal, rpc, file
	Networks int    `json:"networks"`
	Error    string `json:"error,omitempty"`
}

// StateChangedEvent is emitted on every supervisor state transition.
type StateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// LinkConnectedEvent is emitted when a new session opens.
type LinkConnectedEvent struct {
	BaseEvent
	SSID          string `json:"ssid"`
	RSSI          *int   `json:"rssi,omitempty"`
	AutoInitiated bool   `json:"auto_initiated,omitempty"`
}

// LinkDisconnectedEvent is emitted when the open session closes.
type LinkDisconnectedEvent struct {
	BaseEvent
	SSID       string `json:"ssid"`
	DurationMs int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"` // link_down, poll_error, switched
}

// ReconnectScheduledEvent is emitted when an attempt starts.
type ReconnectScheduledEvent struct {
	BaseEvent
	EpisodeID   string `json:"episode_id"`
	SSID        string `json:"ssid"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	DelayMs     int64  `json:"delay_ms"`
}

// ReconnectSucceededEvent is emitted when the connect call succeeds.
type ReconnectSucceededEvent struct {
	BaseEvent
	EpisodeID string `json:"episode_id"`
	SSID      string `json:"ssid"`
	Attempt   int    `json:"attempt"`
}

// ReconnectFailedEvent is emitted when an attempt ends without a link.
// Terminal is set when no further attempt will be made this episode.
type ReconnectFailedEvent struct {
	BaseEvent
	EpisodeID string `json:"episode_id"`
	SSID      string `json:"ssid"`
	Attempt   int    `json:"attempt"`
	Error     string `json:"error"`
	Terminal  bool   `json:"terminal,omitempty"`
}

// PollErrorEvent is emitted when the link state cannot be read.
type PollErrorEvent struct {
	BaseEvent
	Error string `json:"error"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ErrorEvent is emitted for any other error condition.
type ErrorEvent struct {
	BaseEvent
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Context  map[string]string `json:"context,omitempty"`
}

// NewEvent creates a BaseEvent with a fresh id.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewSupervisorEvent creates a BaseEvent with the supervisor as source.
func NewSupervisorEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceSupervisor)
}

// NewDaemonEvent creates a BaseEvent with the daemon as source.
func NewDaemonEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceDaemon)
}
