// Package history keeps the capped, newest-first log of connection events
// and persists it into a kvstore after every mutation.
package history

import "time"

// Entry is one connection record. An entry is open while DisconnectedAt is
// nil; it is closed in place exactly once.
type Entry struct {
	SSID           string     `json:"ssid"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
	Success        bool       `json:"success"`
	FailureReason  *string    `json:"failureReason,omitempty"`
}

// IsOpen reports whether the entry still has no disconnect time.
func (e Entry) IsOpen() bool {
	return e.DisconnectedAt == nil
}

// Duration returns DisconnectedAt - ConnectedAt. ok is false for open entries.
func (e Entry) Duration() (d time.Duration, ok bool) {
	if e.DisconnectedAt == nil {
		return 0, false
	}
	return e.DisconnectedAt.Sub(e.ConnectedAt), true
}

// Reason returns the failure reason or "".
func (e Entry) Reason() string {
	if e.FailureReason == nil {
		return ""
	}
	return *e.FailureReason
}

// clone returns a copy that shares no pointers with e.
func (e Entry) clone() Entry {
	if e.DisconnectedAt != nil {
		t := *e.DisconnectedAt
		e.DisconnectedAt = &t
	}
	if e.FailureReason != nil {
		r := *e.FailureReason
		e.FailureReason = &r
	}
	return e
}
