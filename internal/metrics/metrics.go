// Package metrics exposes supervisor counters to Prometheus and serves
// them, together with health and history endpoints, over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkwatch"

// Reconnect results.
const (
	ResultSucceeded     = "succeeded"
	ResultFailed        = "failed"
	ResultNoCredentials = "no_credentials"
	ResultTimeout       = "timeout"
	ResultCanceled      = "canceled"
)

// Collector holds the linkwatch metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	linkUp         prometheus.Gauge
	signal         prometheus.Gauge
	attemptRunning prometheus.Gauge
	connectLatency prometheus.Histogram
}

// New creates a Collector with Go runtime and process collectors
// registered alongside the linkwatch metrics.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		// Labels: state (connected, not_connected, error)
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Link state polls by observed state",
		}, []string{"state"}),

		// Labels: to (idle, connected, reconnecting)
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Supervisor state transitions by target state",
		}, []string{"to"}),

		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "attempts_total",
			Help:      "Reconnect attempts by result",
		}, []string{"result"}),

		linkUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_up",
			Help:      "1 while a session is open",
		}),

		signal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_dbm",
			Help:      "Last reported signal strength",
		}),

		attemptRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "in_flight",
			Help:      "1 while a reconnect attempt is running",
		}),

		connectLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconnect",
			Name:      "connect_duration_seconds",
			Help:      "Duration of connect calls made by reconnect attempts",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePoll counts one poll.
func (c *Collector) ObservePoll(state string) {
	c.polls.WithLabelValues(state).Inc()
}

// ObserveTransition counts one state transition.
func (c *Collector) ObserveTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

// ObserveReconnect counts a finished attempt and, when the connect call
// ran, its duration.
func (c *Collector) ObserveReconnect(result string, connectSeconds float64) {
	c.reconnects.WithLabelValues(result).Inc()
	if connectSeconds > 0 {
		c.connectLatency.Observe(connectSeconds)
	}
}

// SetLink records whether the link is up and its signal.
func (c *Collector) SetLink(up bool, rssi *int) {
	if up {
		c.linkUp.Set(1)
	} else {
		c.linkUp.Set(0)
	}
	if rssi != nil {
		c.signal.Set(float64(*rssi))
	}
}

// SetAttemptInFlight records whether a reconnect attempt is running.
func (c *Collector) SetAttemptInFlight(running bool) {
	if running {
		c.attemptRunning.Set(1)
	} else {
		c.attemptRunning.Set(0)
	}
}

// RegisterGaugeFunc exposes a value computed at scrape time, such as the
// history length or the notification queue counters.
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
