package events

import (
	"encoding/json"
)

type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses one JSON line written by LogSink into a typed Event.
// Returns nil with no error for unknown event types so older binaries can
// read newer logs.
func ParseEvent(line []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	switch envelope.Type {
	case EventDaemonStart:
		ev = &DaemonStartEvent{}
	case EventDaemonStop:
		ev = &DaemonStopEvent{}
	case EventConfigReloaded:
		ev = &ConfigReloadedEvent{}
	case EventStateChanged:
		ev = &StateChangedEvent{}
	case EventLinkConnected:
		ev = &LinkConnectedEvent{}
	case EventLinkDisconnected:
		ev = &LinkDisconnectedEvent{}
	case EventReconnectScheduled:
		ev = &ReconnectScheduledEvent{}
	case EventReconnectSucceeded:
		ev = &ReconnectSucceededEvent{}
	case EventReconnectFailed:
		ev = &ReconnectFailedEvent{}
	case EventPollError:
		ev = &PollErrorEvent{}
	case EventError:
		ev = &ErrorEvent{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
