package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/npratt/linkwatch/internal/config"
	"github.com/npratt/linkwatch/internal/daemon"
	"github.com/npratt/linkwatch/internal/supervisor"
	"github.com/npratt/linkwatch/internal/testutil"
)

const iwConnected = `Connected to 11:22:33:44:55:66 (on wlan0)
	SSID: Home
	freq: 5180
	signal: -52 dBm
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config with every path in a temp dir. The socket
// lives under os.TempDir to stay within the Unix socket path limit.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	sockDir, err := os.MkdirTemp("", "lw")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		State:  filepath.Join(dir, "history.json"),
		DB:     filepath.Join(dir, "history.db"),
		Log:    filepath.Join(dir, "events.log"),
		Socket: filepath.Join(sockDir, "s"),
		PID:    filepath.Join(dir, "linkwatch.pid"),
	}
	cfg.Credentials.Path = filepath.Join(dir, "networks.yaml")
	cfg.Notify.Backend = "none"
	cfg.Metrics.Addr = "127.0.0.1:0"
	return cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	testutil.Eventually(t, 5*time.Second, cond, what)
}

// startApp runs a until the test ends and returns the run result channel.
func startApp(t *testing.T, a *app) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func stopApp(t *testing.T, a *app, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	a.close(context.Background(), "test")
}

func TestAppRecordsConnectionAndServesStatus(t *testing.T) {
	cfg := testConfig(t)
	runner := testutil.NewMockRunner()
	runner.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte(iwConnected))

	a, err := newApp(viper.New(), cfg, discardLogger(), runner)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	cancel, done := startApp(t, a)

	client := daemon.NewClient(cfg.Paths.Socket)
	var status *daemon.StatusResponse
	eventually(t, "connected status", func() bool {
		st, err := client.Status()
		if err != nil || st.Supervisor.State != supervisor.StateConnected {
			return false
		}
		status = st
		return true
	})

	if status.Supervisor.Session == nil || status.Supervisor.Session.SSID != "Home" {
		t.Errorf("session = %+v, want Home", status.Supervisor.Session)
	}
	if status.HistorySize != 1 {
		t.Errorf("history size = %d, want 1", status.HistorySize)
	}
	if status.Notifications == nil {
		t.Error("notification stats missing")
	}

	h, err := client.History(0, "")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(h.Entries) != 1 || h.Entries[0].SSID != "Home" || !h.Entries[0].IsOpen() {
		t.Errorf("history = %+v", h.Entries)
	}

	stopApp(t, a, cancel, done)

	testutil.AssertNotCalled(t, runner, "nmcli")

	data := testutil.ReadFile(t, cfg.Paths.Log)
	for _, want := range []string{`"type":"daemon.start"`, `"type":"link.connected"`, `"type":"daemon.stop"`} {
		if !strings.Contains(data, want) {
			t.Errorf("event log missing %s", want)
		}
	}
}

func TestAppHistoryPersistsAcrossRestart(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.History.Backend = backend
			runner := testutil.NewMockRunner()
			runner.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte(iwConnected))

			a, err := newApp(viper.New(), cfg, discardLogger(), runner)
			if err != nil {
				t.Fatalf("newApp failed: %v", err)
			}
			cancel, done := startApp(t, a)
			eventually(t, "history entry", func() bool { return a.history.Len() == 1 })
			stopApp(t, a, cancel, done)

			entries, total, err := readHistoryOffline(cfg, 0, "", discardLogger())
			if err != nil {
				t.Fatalf("readHistoryOffline failed: %v", err)
			}
			if total != 1 || len(entries) != 1 || entries[0].SSID != "Home" {
				t.Errorf("offline history = %+v (total %d)", entries, total)
			}

			entries, _, err = readHistoryOffline(cfg, 0, "Cafe", discardLogger())
			if err != nil {
				t.Fatalf("readHistoryOffline failed: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("filtered history = %+v, want empty", entries)
			}

			if backend == "badger" {
				if info, err := os.Stat(cfg.Paths.DB); err != nil || !info.IsDir() {
					t.Errorf("badger directory %s: %v", cfg.Paths.DB, err)
				}
				if _, err := os.Stat(cfg.Paths.State); !os.IsNotExist(err) {
					t.Errorf("state file should be untouched by badger: %v", err)
				}
			}
		})
	}
}

func TestAppStopRPC(t *testing.T) {
	cfg := testConfig(t)
	runner := testutil.NewMockRunner()
	runner.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte("Not connected.\n"))

	a, err := newApp(viper.New(), cfg, discardLogger(), runner)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	_, done := startApp(t, a)

	client := daemon.NewClient(cfg.Paths.Socket)
	eventually(t, "socket", client.IsRunning)
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stop RPC did not end run")
	}
	a.close(context.Background(), "stop")

	if _, err := os.Stat(cfg.Paths.Socket); !os.IsNotExist(err) {
		t.Errorf("socket still present: %v", err)
	}
}

func TestAppReload(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(viper.New(), cfg, discardLogger(), testutil.NewMockRunner())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer func() { _ = a.kv.Close() }()

	if a.creds.Len() != 0 {
		t.Fatalf("networks = %d before the file exists", a.creds.Len())
	}

	testutil.WriteFileMode(t, filepath.Dir(cfg.Credentials.Path), filepath.Base(cfg.Credentials.Path), `networks:
  - ssid: Home
    password: hunter22
  - ssid: Cafe
`, 0600)
	n, err := a.reload(context.Background(), "rpc")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if n != 2 {
		t.Errorf("networks = %d, want 2", n)
	}

	t.Run("insecure file keeps previous networks", func(t *testing.T) {
		if err := os.Chmod(cfg.Credentials.Path, 0644); err != nil {
			t.Fatal(err)
		}
		n, err := a.reload(context.Background(), "rpc")
		if err == nil {
			t.Fatal("expected error for world-readable credentials")
		}
		if n != 2 {
			t.Errorf("networks = %d, want previous 2", n)
		}
	})
}

func TestAppReloadsOnCredentialsChange(t *testing.T) {
	cfg := testConfig(t)
	runner := testutil.NewMockRunner()
	runner.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte("Not connected.\n"))
	cfg.Preferences.AutoConnect = false

	a, err := newApp(viper.New(), cfg, discardLogger(), runner)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	cancel, done := startApp(t, a)
	eventually(t, "socket", daemon.NewClient(cfg.Paths.Socket).IsRunning)

	testutil.WriteFileMode(t, filepath.Dir(cfg.Credentials.Path), filepath.Base(cfg.Credentials.Path),
		"networks:\n  - ssid: Home\n    password: hunter22\n", 0600)
	eventually(t, "credentials reload", func() bool { return a.creds.Len() == 1 })

	stopApp(t, a, cancel, done)
}

func TestAppMetricsServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	runner := testutil.NewMockRunner()
	runner.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte(iwConnected))

	a, err := newApp(viper.New(), cfg, discardLogger(), runner)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	cancel, done := startApp(t, a)
	eventually(t, "connected", func() bool { return a.supervisor.State() == supervisor.StateConnected })

	base := "http://" + a.metricsSrv.Addr()
	for path, want := range map[string]string{
		"/metrics": "linkwatch_history_entries 1",
		"/healthz": `"state":"connected"`,
		"/history": `"ssid":"Home"`,
	} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s body missing %s:\n%s", path, want, body)
		}
	}

	stopApp(t, a, cancel, done)
}
