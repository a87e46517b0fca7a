// Package supervisor polls the wireless link, turns observed changes into
// history entries and notifications, and drives bounded auto-reconnect.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/linkwatch/internal/driver"
	"github.com/npratt/linkwatch/internal/events"
	"github.com/npratt/linkwatch/internal/notify"
)

// State is the supervisor's view of the link.
type State string

// Supervisor states.
const (
	StateIdle         State = "idle"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Disconnect reasons carried on LinkDisconnectedEvent.
const (
	reasonLinkDown  = "link_down"
	reasonPollError = "poll_error"
	reasonSwitched  = "switched"
)

// Session is the currently open connection.
type Session struct {
	SSID      string    `json:"ssid"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot is a point-in-time copy of supervisor state.
type Snapshot struct {
	State           State      `json:"state"`
	Session         *Session   `json:"session,omitempty"`
	LinkState       string     `json:"link_state"`
	RSSI            *int       `json:"rssi,omitempty"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	AttemptInFlight bool       `json:"attempt_in_flight"`
	AttemptSSID     string     `json:"attempt_ssid,omitempty"`
	EpisodeID       string     `json:"episode_id,omitempty"`
	LastPoll        *time.Time `json:"last_poll,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	Polls           int64      `json:"polls"`
}

// Supervisor owns the link state machine. PollOnce and the reconnect
// attempt goroutine are serialized on mu.
type Supervisor struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time

	mu        sync.Mutex
	state     State
	session   *Session
	attempts  int
	episodeID string
	attempt   *attempt
	// expectAuto is the ssid a successful attempt just connected to; the
	// next session for it is marked auto-initiated and not re-notified.
	expectAuto string
	started    bool

	linkState driver.LinkState
	rssi      *int
	lastPoll  time.Time
	lastError string
	polls     int64
}

// New creates a Supervisor in the Idle state.
func New(deps Deps, opts Options) *Supervisor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	m := deps.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ReconnectDelay < 0 {
		opts.ReconnectDelay = 0
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	return &Supervisor{
		deps:      deps,
		opts:      opts,
		logger:    deps.Logger,
		metrics:   m,
		now:       deps.Now,
		state:     StateIdle,
		linkState: driver.StateNotConnected,
	}
}

// Run polls immediately and then every PollInterval until ctx is
// cancelled. On return no attempt is in flight.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started",
		"poll_interval", s.opts.PollInterval,
		"max_attempts", s.opts.MaxAttempts,
	)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// shutdown cancels the in-flight attempt and waits for it to finish.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	a := s.attempt
	s.mu.Unlock()

	if a != nil {
		a.cancel()
		<-a.done
	}
	s.logger.Info("supervisor stopped")
}

// PollOnce reads the link once and applies the resulting transition.
// Errors and panics are logged; the caller never sees them.
func (s *Supervisor) PollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll panicked", "panic", fmt.Sprint(r))
		}
	}()

	status, err := s.deps.Reader.QueryLinkState(ctx)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	s.lastPoll = s.now()
	reason := reasonLinkDown
	if err != nil {
		s.logger.Warn("link state query failed", "error", err)
		s.lastError = err.Error()
		s.emit(&events.PollErrorEvent{
			BaseEvent: events.NewSupervisorEvent(events.EventPollError),
			Error:     err.Error(),
		})
		status = driver.Status{State: driver.StateError}
		reason = reasonPollError
	} else {
		s.lastError = ""
	}
	s.linkState = status.State
	s.rssi = status.RSSI
	s.metrics.ObservePoll(status.State.String())

	first := !s.started
	s.started = true

	if status.Connected() {
		s.metrics.SetLink(true, status.RSSI)
		if s.session != nil && s.session.SSID == status.SSID {
			return
		}
		if s.session != nil {
			s.closeSessionLocked(reasonSwitched)
		}
		s.openSessionLocked(status)
		return
	}

	s.metrics.SetLink(false, nil)
	// The link an attempt reported never showed up; a later session for
	// that ssid is not the attempt's.
	s.expectAuto = ""
	if s.session != nil {
		ssid := s.session.SSID
		s.closeSessionLocked(reason)
		s.deps.Notifier.Notify(notify.KindDisconnected, ssid)
		if s.deps.Preferences.AutoReconnectEnabled() {
			s.startAttemptLocked(ctx, ssid, kindReconnect)
		}
		if s.attempt == nil {
			s.setStateLocked(StateIdle)
		} else {
			s.setStateLocked(StateReconnecting)
		}
		return
	}

	if first && s.attempt == nil && s.deps.Preferences.AutoConnectEnabled() {
		if ssid := s.preferredNetworkLocked(); ssid != "" {
			s.logger.Info("auto-connecting to saved network", "ssid", ssid)
			s.startAttemptLocked(ctx, ssid, kindAutoConnect)
		}
	}
}

// openSessionLocked records a new connection. A session for the ssid a
// reconnect attempt just joined is not announced again. The attempt
// budget is left alone: only a successful attempt refills it.
func (s *Supervisor) openSessionLocked(status driver.Status) {
	auto := s.expectAuto != "" && s.expectAuto == status.SSID
	s.expectAuto = ""

	s.session = &Session{SSID: status.SSID, StartedAt: s.now()}

	s.deps.History.RecordConnection(status.SSID)
	if !auto {
		s.deps.Notifier.Notify(notify.KindConnected, status.SSID)
	}
	s.emit(&events.LinkConnectedEvent{
		BaseEvent:     events.NewSupervisorEvent(events.EventLinkConnected),
		SSID:          status.SSID,
		RSSI:          status.RSSI,
		AutoInitiated: auto,
	})
	s.logger.Info("connected", "ssid", status.SSID, "auto", auto)
	s.setStateLocked(StateConnected)
}

func (s *Supervisor) closeSessionLocked(reason string) {
	sess := s.session
	s.session = nil

	s.deps.History.RecordDisconnection(sess.SSID)
	dur := s.now().Sub(sess.StartedAt)
	s.emit(&events.LinkDisconnectedEvent{
		BaseEvent:  events.NewSupervisorEvent(events.EventLinkDisconnected),
		SSID:       sess.SSID,
		DurationMs: dur.Milliseconds(),
		Reason:     reason,
	})
	s.logger.Info("disconnected", "ssid", sess.SSID, "duration", dur.Round(time.Second), "reason", reason)
}

// preferredNetworkLocked picks the saved network connected to most
// recently, or the first saved network when none has history.
func (s *Supervisor) preferredNetworkLocked() string {
	if s.deps.Known == nil {
		return ""
	}
	known := s.deps.Known.Known()
	if len(known) == 0 {
		return ""
	}
	best := known[0]
	var bestAt time.Time
	for _, ssid := range known {
		e, ok := s.deps.History.LastSuccessfulConnection(ssid)
		if ok && e.ConnectedAt.After(bestAt) {
			best, bestAt = ssid, e.ConnectedAt
		}
	}
	return best
}

// Snapshot returns a copy of the current state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:       s.state,
		LinkState:   s.linkState.String(),
		RSSI:        s.rssi,
		Attempts:    s.attempts,
		MaxAttempts: s.opts.MaxAttempts,
		EpisodeID:   s.episodeID,
		LastError:   s.lastError,
		Polls:       s.polls,
	}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	if s.attempt != nil {
		snap.AttemptInFlight = true
		snap.AttemptSSID = s.attempt.ssid
	}
	if !s.lastPoll.IsZero() {
		t := s.lastPoll
		snap.LastPoll = &t
	}
	return snap
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setStateLocked(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.metrics.ObserveTransition(string(to))
	s.emit(&events.StateChangedEvent{
		BaseEvent: events.NewSupervisorEvent(events.EventStateChanged),
		From:      string(from),
		To:        string(to),
	})
	s.logger.Debug("state changed", "from", from, "to", to)
}

func (s *Supervisor) emit(event events.Event) {
	if s.deps.Events != nil {
		s.deps.Events.Emit(event)
	}
}

func newEpisodeID() string {
	return uuid.NewString()
}
