// Package daemon runs linkwatch in the background and exposes its state
// over a Unix socket JSON-RPC interface.
package daemon

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/notify"
	"github.com/npratt/linkwatch/internal/supervisor"
)

// StatusSource reports supervisor state.
type StatusSource interface {
	Snapshot() supervisor.Snapshot
}

// HistorySource is the part of the history store the RPC methods use.
type HistorySource interface {
	History(limit int) []history.Entry
	LastSuccessful() (history.Entry, bool)
	Len() int
	Clear()
}

// NotifierStats reports notification counters.
type NotifierStats interface {
	Stats() notify.Stats
}

// ReloadFunc re-reads preferences and credentials and returns the number
// of saved networks.
type ReloadFunc func(ctx context.Context, trigger string) (networks int, err error)

// Options wires a Daemon to the running components. Only SocketPath is
// required; methods whose component is missing return an error.
type Options struct {
	SocketPath string
	Supervisor StatusSource
	History    HistorySource
	Notifier   NotifierStats
	Reload     ReloadFunc
	// Stop is called by the stop method to end the process.
	Stop   func()
	Logger *slog.Logger
}

// Daemon serves control requests on a Unix socket.
type Daemon struct {
	opts     Options
	sockPath string
	logger   *slog.Logger

	mu        sync.RWMutex
	running   bool
	listener  net.Listener
	startTime time.Time
}

// New creates a Daemon.
func New(opts Options) *Daemon {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Daemon{
		opts:     opts,
		sockPath: opts.SocketPath,
		logger:   opts.Logger,
	}
}

// Running returns whether the daemon is currently serving.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// StartTime returns when the daemon started serving.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
