package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewEventAssignsIDs(t *testing.T) {
	a := NewSupervisorEvent(EventPollError)
	b := NewSupervisorEvent(EventPollError)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Source() != SourceSupervisor {
		t.Errorf("Source = %q, want %q", a.Source(), SourceSupervisor)
	}
	if NewDaemonEvent(EventDaemonStart).Source() != SourceDaemon {
		t.Error("daemon event should have daemon source")
	}
	if time.Since(a.Timestamp()) > time.Minute {
		t.Error("timestamp should be now")
	}
}

func TestParseEventRoundTrip(t *testing.T) {
	events := []Event{
		&DaemonStartEvent{BaseEvent: NewDaemonEvent(EventDaemonStart), Interface: "wlan0", PID: 42},
		&DaemonStopEvent{BaseEvent: NewDaemonEvent(EventDaemonStop), Reason: "signal"},
		&ConfigReloadedEvent{BaseEvent: NewDaemonEvent(EventConfigReloaded), Trigger: "rpc", Networks: 3},
		&StateChangedEvent{BaseEvent: NewSupervisorEvent(EventStateChanged), From: "idle", To: "connected"},
		&LinkConnectedEvent{BaseEvent: NewSupervisorEvent(EventLinkConnected), SSID: "Home"},
		&LinkDisconnectedEvent{BaseEvent: NewSupervisorEvent(EventLinkDisconnected), SSID: "Home", DurationMs: 1},
		&ReconnectScheduledEvent{BaseEvent: NewSupervisorEvent(EventReconnectScheduled), SSID: "Home", Attempt: 1},
		&ReconnectSucceededEvent{BaseEvent: NewSupervisorEvent(EventReconnectSucceeded), SSID: "Home", Attempt: 1},
		&ReconnectFailedEvent{BaseEvent: NewSupervisorEvent(EventReconnectFailed), SSID: "Home", Error: "x"},
		&PollErrorEvent{BaseEvent: NewSupervisorEvent(EventPollError), Error: "x"},
		&ErrorEvent{BaseEvent: NewDaemonEvent(EventError), Message: "x", Severity: SeverityError},
	}

	for _, ev := range events {
		t.Run(string(ev.Type()), func(t *testing.T) {
			line, err := json.Marshal(ev)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, err := ParseEvent(line)
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if got == nil || got.Type() != ev.Type() {
				t.Fatalf("ParseEvent = %v, want type %s", got, ev.Type())
			}
		})
	}
}

func TestParseEventUnknownAndInvalid(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"future.event"}`))
	if err != nil || ev != nil {
		t.Errorf("unknown type = %v, %v; want nil, nil", ev, err)
	}
	if _, err := ParseEvent([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFormat(t *testing.T) {
	rssi := -60
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "connected",
			event: &LinkConnectedEvent{SSID: "Home", RSSI: &rssi},
			want:  `[+] connected to "Home" (-60 dBm)`,
		},
		{
			name:  "auto connected",
			event: &LinkConnectedEvent{SSID: "Home", AutoInitiated: true},
			want:  `[+] connected to "Home" automatically`,
		},
		{
			name:  "disconnected",
			event: &LinkDisconnectedEvent{SSID: "Home", DurationMs: 30000, Reason: "link_down"},
			want:  `[-] disconnected from "Home" after 30s (link_down)`,
		},
		{
			name:  "reconnect scheduled",
			event: &ReconnectScheduledEvent{SSID: "Home", Attempt: 2, MaxAttempts: 3},
			want:  `[~] reconnecting to "Home" (attempt 2/3)`,
		},
		{
			name:  "reconnect failed terminal",
			event: &ReconnectFailedEvent{SSID: "Office", Attempt: 1, Error: "no saved credentials", Terminal: true},
			want:  `[x] reconnect to "Office" failed (attempt 1): no saved credentials, giving up`,
		},
		{
			name:  "state",
			event: &StateChangedEvent{From: "connected", To: "reconnecting"},
			want:  "state: connected -> reconnecting",
		},
		{
			name:  "reload error",
			event: &ConfigReloadedEvent{Trigger: "file", Error: "bad yaml"},
			want:  "[!] reload (file) failed: bad yaml",
		},
		{
			name:  "nil",
			event: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.event); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatWithTimestampUnknown(t *testing.T) {
	ev := &struct{ BaseEvent }{BaseEvent: BaseEvent{EventType: "custom", Time: time.Now()}}
	if got := FormatWithTimestamp(ev); !strings.HasSuffix(got, "] custom") {
		t.Errorf("FormatWithTimestamp = %q", got)
	}
}

func TestSafeStringAndTruncate(t *testing.T) {
	if got := SafeString("\x1b[31mHome\x1b[0m\nNet\x07"); got != "Home Net" {
		t.Errorf("SafeString = %q, want %q", got, "Home Net")
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Truncate = %q, want abc...", got)
	}
	if got := Truncate("abc", 2); got != "..." {
		t.Errorf("Truncate short = %q", got)
	}
}
