package config

import "sync/atomic"

// LivePreferences holds the current Preferences and lets the daemon swap them
// while the supervisor and notifier keep reading.
type LivePreferences struct {
	v atomic.Pointer[Preferences]
}

// NewLivePreferences returns a holder initialised with p.
func NewLivePreferences(p Preferences) *LivePreferences {
	lp := &LivePreferences{}
	lp.Store(p)
	return lp
}

// Store replaces the current preferences.
func (lp *LivePreferences) Store(p Preferences) {
	lp.v.Store(&p)
}

// Load returns a copy of the current preferences.
func (lp *LivePreferences) Load() Preferences {
	return *lp.v.Load()
}

// AutoReconnectEnabled reports whether dropped links are reconnected.
func (lp *LivePreferences) AutoReconnectEnabled() bool { return lp.Load().AutoReconnect }

// AutoConnectEnabled reports whether a saved network is joined on start.
func (lp *LivePreferences) AutoConnectEnabled() bool { return lp.Load().AutoConnect }

// NotificationsEnabled reports whether user notifications are shown.
func (lp *LivePreferences) NotificationsEnabled() bool { return lp.Load().Notifications }
