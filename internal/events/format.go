package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxSSIDLength     = 32
	maxErrorLength    = 120
	truncateIndicator = "..."
)

// Format converts an event to a one-line human-readable string.
// Returns empty string for nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *DaemonStartEvent:
		return fmt.Sprintf("daemon started on %s (pid %d)", SafeString(e.Interface), e.PID)
	case *DaemonStopEvent:
		if reason := SafeString(e.Reason); reason != "" {
			return fmt.Sprintf("daemon stopped: %s", reason)
		}
		return "daemon stopped"
	case *ConfigReloadedEvent:
		return formatConfigReloaded(e)
	case *StateChangedEvent:
		return fmt.Sprintf("state: %s -> %s", SafeString(e.From), SafeString(e.To))
	case *LinkConnectedEvent:
		return formatLinkConnected(e)
	case *LinkDisconnectedEvent:
		return formatLinkDisconnected(e)
	case *ReconnectScheduledEvent:
		return fmt.Sprintf("[~] reconnecting to %s (attempt %d/%d)", ssid(e.SSID), e.Attempt, e.MaxAttempts)
	case *ReconnectSucceededEvent:
		return fmt.Sprintf("[+] reconnected to %s on attempt %d", ssid(e.SSID), e.Attempt)
	case *ReconnectFailedEvent:
		return formatReconnectFailed(e)
	case *PollErrorEvent:
		return fmt.Sprintf("poll error: %s", Truncate(e.Error, maxErrorLength))
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp formats an event with a timestamp prefix.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Local().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func ssid(s string) string {
	return fmt.Sprintf("%q", Truncate(s, maxSSIDLength))
}

func formatConfigReloaded(e *ConfigReloadedEvent) string {
	trigger := SafeString(e.Trigger)
	if e.Error != "" {
		return fmt.Sprintf("[!] reload (%s) failed: %s", trigger, Truncate(e.Error, maxErrorLength))
	}
	return fmt.Sprintf("config reloaded (%s), %d saved networks", trigger, e.Networks)
}

func formatLinkConnected(e *LinkConnectedEvent) string {
	var b strings.Builder
	b.WriteString("[+] connected to ")
	b.WriteString(ssid(e.SSID))
	if e.RSSI != nil {
		fmt.Fprintf(&b, " (%d dBm)", *e.RSSI)
	}
	if e.AutoInitiated {
		b.WriteString(" automatically")
	}
	return b.String()
}

func formatLinkDisconnected(e *LinkDisconnectedEvent) string {
	d := (time.Duration(e.DurationMs) * time.Millisecond).Round(time.Second)
	if reason := SafeString(e.Reason); reason != "" {
		return fmt.Sprintf("[-] disconnected from %s after %s (%s)", ssid(e.SSID), d, reason)
	}
	return fmt.Sprintf("[-] disconnected from %s after %s", ssid(e.SSID), d)
}

func formatReconnectFailed(e *ReconnectFailedEvent) string {
	msg := fmt.Sprintf("[x] reconnect to %s failed (attempt %d): %s",
		ssid(e.SSID), e.Attempt, Truncate(e.Error, maxErrorLength))
	if e.Terminal {
		msg += ", giving up"
	}
	return msg
}

func formatError(e *ErrorEvent) string {
	msg := Truncate(e.Message, maxErrorLength)
	switch e.Severity {
	case SeverityWarning:
		return fmt.Sprintf("[!] warning: %s", msg)
	default:
		return fmt.Sprintf("[!] error: %s", msg)
	}
}

// Truncate shortens text to maxLen, adding indicator if truncated.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SafeString sanitizes a string for terminal display. SSIDs are arbitrary
// bytes, so escape sequences and control characters are removed.
func SafeString(s string) string {
	s = ansiRegex.ReplaceAllString(s, "")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			sb.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
