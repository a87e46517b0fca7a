package supervisor

import (
	"log/slog"
	"time"

	"github.com/npratt/linkwatch/internal/config"
	"github.com/npratt/linkwatch/internal/credentials"
	"github.com/npratt/linkwatch/internal/driver"
	"github.com/npratt/linkwatch/internal/events"
	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/notify"
)

// HistoryRecorder is the part of the history store the supervisor writes.
type HistoryRecorder interface {
	RecordConnection(ssid string)
	RecordDisconnection(ssid string)
	RecordFailure(ssid, reason string)
	LastSuccessfulConnection(ssid string) (history.Entry, bool)
}

// Notifier receives user-facing notifications. It must not block.
type Notifier interface {
	Notify(kind notify.Kind, ssid string, opts ...notify.Option)
}

// Preferences are read on every decision so live changes apply at once.
type Preferences interface {
	AutoReconnectEnabled() bool
	AutoConnectEnabled() bool
}

// KnownNetworks lists saved ssids in preference order.
type KnownNetworks interface {
	Known() []string
}

// Emitter publishes internal events.
type Emitter interface {
	Emit(events.Event)
}

// Metrics receives supervisor measurements.
type Metrics interface {
	ObservePoll(state string)
	ObserveTransition(to string)
	ObserveReconnect(result string, connectSeconds float64)
	SetLink(up bool, rssi *int)
	SetAttemptInFlight(running bool)
}

// Deps are the collaborators of a Supervisor. Reader, Connector,
// Credentials, History, Notifier and Preferences are required.
type Deps struct {
	Reader      driver.Reader
	Connector   driver.Connector
	Credentials credentials.Lookup
	Known       KnownNetworks // optional; enables auto-connect on start
	History     HistoryRecorder
	Notifier    Notifier
	Preferences Preferences
	Events      Emitter // optional
	Metrics     Metrics // optional
	Logger      *slog.Logger
	Now         func() time.Time
}

// Options are the timing and policy knobs.
type Options struct {
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	MaxAttempts    int
	// ConnectTimeout bounds one connect call; 0 leaves it to the connector.
	ConnectTimeout time.Duration
	// RecordReconnectFailures persists failed attempts with RecordFailure.
	RecordReconnectFailures bool
}

// OptionsFromConfig maps the monitor and history config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval:            cfg.Monitor.PollInterval,
		ReconnectDelay:          cfg.Monitor.ReconnectDelay,
		MaxAttempts:             cfg.Monitor.MaxReconnectAttempts,
		ConnectTimeout:          cfg.Monitor.ConnectTimeout,
		RecordReconnectFailures: cfg.History.RecordReconnectFailures,
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePoll(string)               {}
func (noopMetrics) ObserveTransition(string)         {}
func (noopMetrics) ObserveReconnect(string, float64) {}
func (noopMetrics) SetLink(bool, *int)               {}
func (noopMetrics) SetAttemptInFlight(bool)          {}
