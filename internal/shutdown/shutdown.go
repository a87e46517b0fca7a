// Package shutdown runs the daemon until a termination signal and turns
// SIGHUP into a reload.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Options configures Run.
type Options struct {
	// Timeout bounds the shutdown func and the wait for the runner.
	Timeout time.Duration
	// OnReload is called for each SIGHUP. Nil ignores SIGHUP.
	OnReload func()

	signals chan os.Signal // tests inject signals here
}

// Run starts runner and blocks until it returns or SIGINT/SIGTERM arrives.
// On a signal the runner's context is cancelled, shutdown is called with
// a context bounded by Timeout, and Run waits for the runner to finish.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	opts Options,
	runner func(ctx context.Context) error,
	shutdown func(ctx context.Context) error,
) error {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- runner(runCtx)
	}()

	sigs := opts.signals
	if sigs == nil {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigs)
	}

	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				if opts.OnReload != nil {
					logger.Info("received SIGHUP, reloading")
					opts.OnReload()
				}
				continue
			}
			logger.Info("received signal, initiating shutdown", "signal", sig)
			return stop(logger, opts.Timeout, runCancel, runDone, shutdown)

		case <-ctx.Done():
			logger.Info("context cancelled, initiating shutdown")
			return stop(logger, opts.Timeout, runCancel, runDone, shutdown)

		case err := <-runDone:
			return err
		}
	}
}

func stop(
	logger *slog.Logger,
	timeout time.Duration,
	cancel context.CancelFunc,
	runDone <-chan error,
	shutdown func(ctx context.Context) error,
) error {
	cancel()

	ctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	if shutdown != nil {
		if err := shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}

	select {
	case err := <-runDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-ctx.Done():
		logger.Warn("shutdown timeout exceeded")
	}

	logger.Info("shutdown complete")
	return nil
}
