package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/npratt/linkwatch/internal/config"
	"github.com/npratt/linkwatch/internal/credentials"
	"github.com/npratt/linkwatch/internal/daemon"
	"github.com/npratt/linkwatch/internal/driver"
	"github.com/npratt/linkwatch/internal/events"
	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/kvstore"
	"github.com/npratt/linkwatch/internal/metrics"
	"github.com/npratt/linkwatch/internal/notify"
	"github.com/npratt/linkwatch/internal/supervisor"
	"github.com/npratt/linkwatch/internal/testutil"
	"github.com/npratt/linkwatch/internal/watch"
)

// app owns every component of a running daemon.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger

	kv         kvstore.Store
	history    *history.Store
	creds      *credentials.FileStore
	prefs      *config.LivePreferences
	router     *events.Router
	logSink    *events.LogSink
	notifier   *notify.Notifier
	collector  *metrics.Collector
	metricsSrv *metrics.Server
	supervisor *supervisor.Supervisor
	daemon     *daemon.Daemon
	watcher    *watch.Watcher

	reloadMu sync.Mutex

	stopMu sync.Mutex
	stop   context.CancelFunc

	sinkCancel context.CancelFunc
}

// newApp builds the component graph. cfg must already have absolute paths.
func newApp(v *viper.Viper, cfg *config.Config, logger *slog.Logger, runner testutil.CommandRunner) (*app, error) {
	a := &app{
		v:      v,
		cfg:    cfg,
		logger: logger,
		prefs:  config.NewLivePreferences(cfg.Preferences),
	}

	kv, err := kvstore.Open(cfg.History.Backend, cfg.HistoryStorePath(), logger.With("component", "kvstore"))
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	a.kv = kv
	a.history = history.New(kv, history.Options{
		Key:          cfg.History.Key,
		Capacity:     cfg.History.Capacity,
		DisplayLimit: cfg.History.DisplayLimit,
		Logger:       logger.With("component", "history"),
	})

	a.creds = credentials.NewFileStore(cfg.Credentials.Path, logger.With("component", "credentials"))
	if err := a.creds.Reload(); err != nil {
		logger.Warn("starting without saved networks", "error", err)
	}

	a.router = events.NewRouter(events.DefaultBufferSize)
	a.router.SetLogger(logger)
	a.logSink = events.NewLogSink(cfg.Paths.Log, events.Rotation{
		MaxSizeMB:  cfg.LogRotation.MaxSizeMB,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAgeDays: cfg.LogRotation.MaxAgeDays,
		Compress:   cfg.LogRotation.Compress,
	}, logger)

	backend, err := notify.NewBackend(cfg.Notify, runner)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("notification backend: %w", err)
	}
	a.notifier = notify.New(backend, a.prefs, notify.Options{
		QueueSize:  cfg.Notify.QueueSize,
		Timeout:    cfg.Notify.Timeout,
		RatePerSec: cfg.Notify.RatePerSec,
		Burst:      cfg.Notify.Burst,
		Logger:     logger.With("component", "notify"),
	})

	a.collector = metrics.New()
	a.registerGauges()

	a.supervisor = supervisor.New(supervisor.Deps{
		Reader:      driver.NewIWReader(runner, cfg.Driver.LinkCommand, cfg.Driver.Interface),
		Connector:   driver.NewNMCLIConnector(runner, cfg.Driver.ConnectCommand, cfg.Driver.Interface),
		Credentials: a.creds,
		Known:       a.creds,
		History:     a.history,
		Notifier:    a.notifier,
		Preferences: a.prefs,
		Events:      a.router,
		Metrics:     a.collector,
		Logger:      logger.With("component", "supervisor"),
	}, supervisor.OptionsFromConfig(cfg))

	if cfg.Metrics.Enabled {
		a.metricsSrv = metrics.NewServer(cfg.Metrics.Addr, a.collector, metrics.Handlers{
			Health: func() (any, bool) {
				snap := a.supervisor.Snapshot()
				return snap, snap.LastError == ""
			},
			History: func(limit int) any {
				return a.history.History(limit)
			},
		}, logger.With("component", "http"))
	}

	a.daemon = daemon.New(daemon.Options{
		SocketPath: cfg.Paths.Socket,
		Supervisor: a.supervisor,
		History:    a.history,
		Notifier:   a.notifier,
		Reload:     a.reload,
		Stop:       a.requestStop,
		Logger:     logger.With("component", "daemon"),
	})

	watched := config.SourceFiles(v)
	if cfg.Credentials.Watch {
		watched = append(watched, cfg.Credentials.Path)
	}
	if len(watched) > 0 {
		w, err := watch.New(watched, func(path string) {
			logger.Info("watched file changed", "path", path)
			if _, err := a.reload(context.Background(), "file"); err != nil {
				logger.Warn("reload after file change failed", "path", path, "error", err)
			}
		}, watch.WithLogger(logger.With("component", "watch")))
		if err != nil {
			logger.Warn("file watching disabled", "error", err)
		} else {
			a.watcher = w
		}
	}

	return a, nil
}

func (a *app) registerGauges() {
	a.collector.RegisterGaugeFunc("history_entries", "Stored connection history entries",
		func() float64 { return float64(a.history.Len()) })
	a.collector.RegisterGaugeFunc("saved_networks", "Networks with saved credentials",
		func() float64 { return float64(a.creds.Len()) })
	a.collector.RegisterGaugeFunc("events_dropped", "Events dropped by slow subscribers",
		func() float64 { return float64(a.router.Dropped()) })
	a.collector.RegisterGaugeFunc("notifications_delivered", "Notifications delivered",
		func() float64 { return float64(a.notifier.Stats().Delivered) })
	a.collector.RegisterGaugeFunc("notifications_failed", "Notifications that failed to deliver",
		func() float64 { return float64(a.notifier.Stats().Failed) })
	a.collector.RegisterGaugeFunc("notifications_dropped", "Notifications dropped by the queue or rate limit",
		func() float64 { return float64(a.notifier.Stats().Dropped) })
}

// reload re-reads preferences from the config files and the saved
// networks. The rest of the config needs a restart.
func (a *app) reload(_ context.Context, trigger string) (int, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	ev := &events.ConfigReloadedEvent{
		BaseEvent: events.NewDaemonEvent(events.EventConfigReloaded),
		Trigger:   trigger,
	}

	var errs []error
	cfg, err := config.LoadConfig(a.v)
	if err != nil {
		errs = append(errs, fmt.Errorf("load config: %w", err))
	} else {
		a.prefs.Store(cfg.Preferences)
	}
	if err := a.creds.Reload(); err != nil {
		errs = append(errs, fmt.Errorf("reload credentials: %w", err))
	}

	ev.Networks = a.creds.Len()
	err = errors.Join(errs...)
	if err != nil {
		ev.Error = err.Error()
	}
	a.router.Emit(ev)

	a.logger.Info("configuration reloaded",
		"trigger", trigger,
		"networks", ev.Networks,
		"preferences", a.prefs.Load(),
		"error", ev.Error,
	)
	return ev.Networks, err
}

// requestStop ends run as if the process had been signalled.
func (a *app) requestStop() {
	a.stopMu.Lock()
	defer a.stopMu.Unlock()
	if a.stop != nil {
		a.stop()
	}
}

// run starts the background components and blocks until ctx is done or
// the stop RPC is received.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.stopMu.Lock()
	a.stop = cancel
	a.stopMu.Unlock()

	// The sink outlives ctx so the stop event is still written.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	if err := a.logSink.Start(sinkCtx, a.router.Subscribe("log")); err != nil {
		sinkCancel()
		return fmt.Errorf("start event log: %w", err)
	}
	a.sinkCancel = sinkCancel

	a.notifier.Start(ctx)

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("file watching disabled", "error", err)
			a.watcher = nil
		}
	}

	a.router.Emit(&events.DaemonStartEvent{
		BaseEvent: events.NewDaemonEvent(events.EventDaemonStart),
		Interface: a.cfg.Driver.Interface,
		PID:       os.Getpid(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.supervisor.Run(gctx)
	})
	g.Go(func() error {
		return a.daemon.Start(gctx)
	})
	return g.Wait()
}

// close stops every component after run has returned.
func (a *app) close(ctx context.Context, reason string) {
	a.router.Emit(&events.DaemonStopEvent{
		BaseEvent: events.NewDaemonEvent(events.EventDaemonStop),
		Reason:    reason,
	})

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	a.notifier.Stop()

	a.router.Close()
	if a.sinkCancel != nil {
		if err := a.logSink.Stop(); err != nil {
			a.logger.Warn("event log close", "error", err)
		}
		a.sinkCancel()
	}
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("history store close", "error", err)
	}
}
