// Package notify delivers best-effort user notifications about link
// changes. Notify never blocks and never fails; delivery happens on a
// background worker behind a bounded queue and a rate limiter.
package notify

import (
	"fmt"
	"time"
)

// Kind is the notification category.
type Kind string

const (
	KindConnected        Kind = "connected"
	KindConnectionFailed Kind = "connection_failed"
	KindDisconnected     Kind = "disconnected"
	KindReconnecting     Kind = "reconnecting"
)

// Message is a rendered notification.
type Message struct {
	Kind      Kind      `json:"kind"`
	SSID      string    `json:"ssid"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Option adds detail to a notification.
type Option func(*details)

type details struct {
	reason        string
	autoInitiated bool
}

// WithReason attaches a failure reason.
func WithReason(reason string) Option {
	return func(d *details) { d.reason = reason }
}

// WithAutoInitiated marks a connection made by linkwatch itself.
func WithAutoInitiated() Option {
	return func(d *details) { d.autoInitiated = true }
}

// Render builds the message text for kind.
func Render(kind Kind, ssid string, opts ...Option) Message {
	var d details
	for _, opt := range opts {
		opt(&d)
	}

	m := Message{Kind: kind, SSID: ssid, Timestamp: time.Now()}
	switch kind {
	case KindConnected:
		m.Title = "Connected"
		if d.autoInitiated {
			m.Body = fmt.Sprintf("Automatically connected to %q", ssid)
		} else {
			m.Body = fmt.Sprintf("Connected to %q", ssid)
		}
	case KindConnectionFailed:
		m.Title = "Connection Failed"
		if d.reason != "" {
			m.Body = fmt.Sprintf("Failed to connect to %q: %s", ssid, d.reason)
		} else {
			m.Body = fmt.Sprintf("Failed to connect to %q", ssid)
		}
	case KindDisconnected:
		m.Title = "Disconnected"
		m.Body = fmt.Sprintf("Disconnected from %q", ssid)
	case KindReconnecting:
		m.Title = "Reconnecting"
		m.Body = fmt.Sprintf("Attempting to reconnect to %q", ssid)
	default:
		m.Title = string(kind)
		m.Body = ssid
	}
	return m
}
