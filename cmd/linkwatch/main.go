package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/linkwatch/internal/config"
	"github.com/npratt/linkwatch/internal/credentials"
	"github.com/npratt/linkwatch/internal/daemon"
	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/kvstore"
	"github.com/npratt/linkwatch/internal/shutdown"
	"github.com/npratt/linkwatch/internal/testutil"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

// getDaemonClient creates a daemon client by finding daemon.json in the project.
func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", daemon.ErrNotRunning, err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// loadConfig loads the layered config, applies the global flag overrides
// and resolves paths against the project root.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	cfg, err := config.LoadConfig(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed(FlagLogFile) {
		cfg.Paths.Log = v.GetString(FlagLogFile)
	}
	if flags.Changed(FlagStateFile) {
		cfg.Paths.State = v.GetString(FlagStateFile)
	}
	if flags.Changed(FlagSocketPath) {
		cfg.Paths.Socket = v.GetString(FlagSocketPath)
	}

	if err := daemon.ResolveConfig(cfg, daemon.FindProjectRoot("")); err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	return cfg, nil
}

// readHistoryOffline reads the history store directly when no daemon owns it.
func readHistoryOffline(cfg *config.Config, limit int, ssid string, logger *slog.Logger) ([]history.Entry, int, error) {
	kv, err := kvstore.Open(cfg.History.Backend, cfg.HistoryStorePath(), logger)
	if err != nil {
		return nil, 0, fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = kv.Close() }()

	store := history.New(kv, history.Options{
		Key:          cfg.History.Key,
		Capacity:     cfg.History.Capacity,
		DisplayLimit: cfg.History.DisplayLimit,
		Logger:       logger,
	})
	if limit <= 0 {
		limit = cfg.History.DisplayLimit
	}
	return filterHistory(store.History(store.Len()), limit, ssid), store.Len(), nil
}

// filterHistory keeps entries for ssid (all when empty), up to limit.
func filterHistory(entries []history.Entry, limit int, ssid string) []history.Entry {
	out := make([]history.Entry, 0, min(limit, len(entries)))
	for _, e := range entries {
		if ssid != "" && e.SSID != ssid {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

func newRootCmd(v *viper.Viper, logLevel *slog.LevelVar, logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "linkwatch",
		Short: "Wireless link supervisor",
		Long: `linkwatch watches a wireless interface, records every connection in a
capped history, notifies on connects and drops, and reconnects to the last
network with a bounded number of attempts.

Run "linkwatch start" to supervise the link; the other commands talk to the
running daemon over its control socket.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if v.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}
		},
	}

	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .linkwatch/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "History store path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for daemon control")
	bindFlags(v, rootCmd.PersistentFlags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "linkwatch %s\n", version)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start supervising the wireless link",
		Long: `Start the linkwatch daemon. It polls the link state of the configured
interface, keeps the connection history, sends notifications and reconnects
after a drop when auto_reconnect is enabled.

Use --daemon to run in the background. SIGHUP reloads preferences and saved
networks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v, logLevel, logger)
		},
	}
	startCmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	startCmd.Flags().String(FlagInterface, "", "Wireless interface to supervise")
	startCmd.Flags().Bool(FlagMetrics, false, "Serve /metrics, /healthz and /history over HTTP")
	startCmd.Flags().String(FlagMetricsAddr, "", "Listen address for the metrics server")
	bindFlags(v, startCmd.Flags())

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show link and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool(FlagJSON); asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			showDuration := false
			if cfg, err := config.LoadConfig(v); err == nil {
				showDuration = cfg.Preferences.ShowConnectionDuration
			}
			renderStatus(cmd.OutOrStdout(), status, showDuration, time.Now())
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent connections, newest first",
		Long: `Show the connection history. The running daemon is asked first; when no
daemon is running the history store is read directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt(FlagLimit)
			ssid, _ := cmd.Flags().GetString(FlagSSID)
			asJSON, _ := cmd.Flags().GetBool(FlagJSON)

			var entries []history.Entry
			resp, err := historyFromDaemon(limit, ssid)
			switch {
			case err == nil:
				entries = resp.Entries
			case errors.Is(err, daemon.ErrNotRunning):
				logger.Debug("daemon not running, reading history store", "error", err)
				cfg, err := loadConfig(cmd, v)
				if err != nil {
					return err
				}
				entries, _, err = readHistoryOffline(cfg, limit, ssid, logger)
				if err != nil {
					return err
				}
			default:
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			renderHistory(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}
	historyCmd.Flags().Int(FlagLimit, 0, "Number of entries to show (default: history.display_limit)")
	historyCmd.Flags().String(FlagSSID, "", "Only show entries for this network")
	historyCmd.Flags().Bool(FlagJSON, false, "Output entries as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete the connection history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.ClearHistory(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Re-read preferences and saved networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			resp, err := client.Reload()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reloaded (%d saved networks)\n", resp.Networks)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Stop(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
			return nil
		},
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			var logPath string
			if info, err := daemon.FindDaemonInfo(""); err == nil {
				logPath = info.LogPath
			} else {
				cfg, err := loadConfig(cmd, v)
				if err != nil {
					return err
				}
				logPath = cfg.Paths.Log
			}

			count, _ := cmd.Flags().GetInt(FlagCount)
			if follow, _ := cmd.Flags().GetBool(FlagFollow); follow {
				return tailFollow(cmd.Context(), cmd.OutOrStdout(), logPath)
			}
			return tailLast(cmd.OutOrStdout(), logPath, count)
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")

	networksCmd := &cobra.Command{
		Use:   "networks",
		Short: "List saved networks in preference order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			store := credentials.NewFileStore(cfg.Credentials.Path, logger)
			if err := store.Reload(); err != nil {
				return err
			}
			return printNetworks(cmd.OutOrStdout(), store)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(networksCmd)
	return rootCmd
}

func historyFromDaemon(limit int, ssid string) (*daemon.HistoryResponse, error) {
	client, err := getDaemonClient()
	if err != nil {
		return nil, err
	}
	return client.History(limit, ssid)
}

// printNetworks lists saved networks with their security type. Secrets
// are never printed.
func printNetworks(w io.Writer, store *credentials.FileStore) error {
	known := store.Known()
	if len(known) == 0 {
		_, _ = fmt.Fprintf(w, "No saved networks in %s\n", store.Path())
		return nil
	}
	for _, ssid := range known {
		security := "unknown"
		if auth, ok := store.LookupCredential(ssid); ok && auth != nil {
			security = string(auth.Security)
		}
		if _, err := fmt.Fprintf(w, "%-32s  %s\n", ssid, security); err != nil {
			return err
		}
	}
	return nil
}

func runStart(cmd *cobra.Command, v *viper.Viper, logLevel *slog.LevelVar, logger *slog.Logger) error {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed(FlagInterface) {
		cfg.Driver.Interface = v.GetString(FlagInterface)
	}
	if flags.Changed(FlagMetrics) {
		cfg.Metrics.Enabled = v.GetBool(FlagMetrics)
	}
	if flags.Changed(FlagMetricsAddr) {
		cfg.Metrics.Addr = v.GetString(FlagMetricsAddr)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	projectRoot := daemon.FindProjectRoot("")
	infoPath := daemon.DaemonInfoPath(projectRoot)

	if v.GetBool(FlagDaemon) {
		if daemon.NewClient(cfg.Paths.Socket).IsRunning() {
			return fmt.Errorf("daemon already running (socket: %s)", cfg.Paths.Socket)
		}
		shouldExit, _, err := daemon.Daemonize(cfg.Paths.Socket, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		if shouldExit {
			return nil
		}
	}

	// A detached child has no stderr; log to a rotated file instead.
	if daemon.IsDaemonized() {
		fl := SetupFileLogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
		defer func() { _ = fl.Close() }()
		logger = fl.Logger
		slog.SetDefault(logger)
	}

	pid := daemon.NewPIDFile(cfg.Paths.PID)
	pid.CleanupStale(cfg.Paths.Socket, infoPath)
	if err := pid.Write(); err != nil {
		if errors.Is(err, daemon.ErrLocked) {
			return fmt.Errorf("linkwatch is already running for %s", projectRoot)
		}
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn("failed to remove pid file", "error", err)
		}
	}()

	logger.Info("linkwatch starting",
		"version", version,
		"interface", cfg.Driver.Interface,
		"state_file", cfg.Paths.State,
		"event_log", cfg.Paths.Log,
		"socket", cfg.Paths.Socket,
		"daemon_mode", daemon.IsDaemonized(),
	)

	a, err := newApp(v, cfg, logger, testutil.NewExecRunner())
	if err != nil {
		return err
	}

	info := &daemon.DaemonInfo{
		SocketPath: cfg.Paths.Socket,
		PIDPath:    cfg.Paths.PID,
		LogPath:    cfg.Paths.Log,
		Interface:  cfg.Driver.Interface,
		StartTime:  time.Now(),
		PID:        os.Getpid(),
	}
	if cfg.Metrics.Enabled {
		info.MetricsAddr = cfg.Metrics.Addr
	}
	if err := daemon.WriteDaemonInfo(infoPath, info); err != nil {
		logger.Warn("failed to write daemon info", "error", err)
	}
	defer func() { _ = daemon.RemoveDaemonInfo(infoPath) }()

	ctx := cmd.Context()
	err = shutdown.Run(ctx, logger,
		shutdown.Options{
			Timeout: shutdownTimeout,
			OnReload: func() {
				if _, err := a.reload(ctx, "signal"); err != nil {
					logger.Warn("reload failed", "error", err)
				}
			},
		},
		a.run,
		nil,
	)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	reason := "shutdown"
	if err != nil {
		reason = err.Error()
	}
	a.close(closeCtx, reason)
	return err
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := newLogger(os.Stderr, logLevel)

	v := viper.GetViper()
	v.SetEnvPrefix("LINKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	rootCmd := newRootCmd(v, logLevel, logger)
	err := rootCmd.ExecuteContext(context.Background())
	memguard.Purge()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
