package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Backend delivers rendered messages.
type Backend interface {
	Name() string
	// Authorize reports whether the backend may deliver at all. It is
	// called once, at Start.
	Authorize(ctx context.Context) error
	Deliver(ctx context.Context, m Message) error
}

// Preferences is the live notifications toggle.
type Preferences interface {
	NotificationsEnabled() bool
}

// Options configures a Notifier. Zero values select the defaults.
type Options struct {
	QueueSize  int
	Timeout    time.Duration // per delivery
	RatePerSec float64
	Burst      int
	Logger     *slog.Logger
}

// Stats counts what happened to Notify calls.
type Stats struct {
	Delivered  uint64 `json:"delivered"`
	Failed     uint64 `json:"failed"`
	Suppressed uint64 `json:"suppressed"` // disabled or unauthorized
	Dropped    uint64 `json:"dropped"`    // queue full or rate limited
}

// Notifier gates, queues and delivers notifications.
type Notifier struct {
	backend Backend
	prefs   Preferences
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger

	queue      chan Message
	authorized atomic.Bool
	started    atomic.Bool

	delivered  atomic.Uint64
	failed     atomic.Uint64
	suppressed atomic.Uint64
	dropped    atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Notifier. Nothing is delivered until Start.
func New(backend Backend, prefs Preferences, opts Options) *Notifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Notifier{
		backend: backend,
		prefs:   prefs,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		logger:  opts.Logger.With("backend", backend.Name()),
		queue:   make(chan Message, opts.QueueSize),
	}
}

// Start resolves authorization and starts the delivery worker. A denied
// authorization is logged, not returned; notifications are then suppressed.
func (n *Notifier) Start(ctx context.Context) {
	if n.started.Swap(true) {
		return
	}

	authCtx, cancelAuth := context.WithTimeout(ctx, n.timeout)
	err := n.backend.Authorize(authCtx)
	cancelAuth()
	if err != nil {
		n.logger.Warn("notifications not authorized", "error", err)
	} else {
		n.authorized.Store(true)
		n.logger.Debug("notifications authorized")
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.run(ctx)
}

// Stop stops the worker. Queued messages are discarded.
func (n *Notifier) Stop() {
	if !n.started.Load() || n.cancel == nil {
		return
	}
	n.cancel()
	n.wg.Wait()
}

// Authorized reports the result of the Start-time authorization.
func (n *Notifier) Authorized() bool {
	return n.authorized.Load()
}

// Notify queues a notification. It never blocks.
func (n *Notifier) Notify(kind Kind, ssid string, opts ...Option) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notify panicked", "kind", kind, "panic", r)
		}
	}()

	if n.prefs != nil && !n.prefs.NotificationsEnabled() {
		n.suppressed.Add(1)
		return
	}
	if !n.authorized.Load() {
		n.suppressed.Add(1)
		return
	}

	m := Render(kind, ssid, opts...)
	select {
	case n.queue <- m:
	default:
		n.dropped.Add(1)
		n.logger.Warn("notification dropped: queue full", "kind", kind, "ssid", ssid)
	}
}

// Stats returns a snapshot of the counters.
func (n *Notifier) Stats() Stats {
	return Stats{
		Delivered:  n.delivered.Load(),
		Failed:     n.failed.Load(),
		Suppressed: n.suppressed.Load(),
		Dropped:    n.dropped.Load(),
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-n.queue:
			n.deliver(ctx, m)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, m Message) {
	if !n.limiter.Allow() {
		n.dropped.Add(1)
		n.logger.Warn("notification dropped: rate limited", "kind", m.Kind, "ssid", m.SSID)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.backend.Deliver(dctx, m); err != nil {
		n.failed.Add(1)
		if !errors.Is(err, context.Canceled) {
			n.logger.Error("failed to deliver notification", "kind", m.Kind, "ssid", m.SSID, "error", err)
		}
		return
	}
	n.delivered.Add(1)
}
