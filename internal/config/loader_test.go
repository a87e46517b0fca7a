package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// isolate moves the test into an empty working directory and points the
// global config lookup at an empty XDG dir.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	return tmpDir
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("Monitor.PollInterval = %v, want %v", cfg.Monitor.PollInterval, 5*time.Second)
	}
	if cfg.History.Capacity != 100 {
		t.Errorf("History.Capacity = %d, want 100", cfg.History.Capacity)
	}
	if !cfg.Preferences.AutoReconnect {
		t.Error("Preferences.AutoReconnect should default to true")
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	isolate(t)

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
monitor:
  poll_interval: 10s
  reconnect_delay: 500ms
  max_reconnect_attempts: 5
preferences:
  auto_reconnect: false
driver:
  interface: wlp2s0
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Monitor.PollInterval != 10*time.Second {
		t.Errorf("Monitor.PollInterval = %v, want %v", cfg.Monitor.PollInterval, 10*time.Second)
	}
	if cfg.Monitor.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("Monitor.ReconnectDelay = %v, want %v", cfg.Monitor.ReconnectDelay, 500*time.Millisecond)
	}
	if cfg.Monitor.MaxReconnectAttempts != 5 {
		t.Errorf("Monitor.MaxReconnectAttempts = %d, want 5", cfg.Monitor.MaxReconnectAttempts)
	}
	if cfg.Preferences.AutoReconnect {
		t.Error("Preferences.AutoReconnect should be false from file")
	}
	if !cfg.Preferences.Notifications {
		t.Error("Preferences.Notifications should keep its default")
	}
	if cfg.Driver.Interface != "wlp2s0" {
		t.Errorf("Driver.Interface = %q, want %q", cfg.Driver.Interface, "wlp2s0")
	}

	files := SourceFiles(viper.New())
	if len(files) != 1 || files[0] != configPath {
		t.Errorf("SourceFiles = %v, want [%s]", files, configPath)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	tmpDir := isolate(t)

	configContent := `
history:
  backend: badger
  capacity: 50
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.History.Backend != "badger" {
		t.Errorf("History.Backend = %q, want %q", cfg.History.Backend, "badger")
	}
	if cfg.History.Capacity != 50 {
		t.Errorf("History.Capacity = %d, want 50", cfg.History.Capacity)
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	v := viper.New()
	v.Set("config", "/nonexistent/path/config.yaml")

	if _, err := LoadConfig(v); err == nil {
		t.Error("LoadConfig should fail for missing explicit config")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tmpDir := isolate(t)

	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("history:\n  backend: postgres\n"), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	if _, err := LoadConfig(v); err == nil {
		t.Error("LoadConfig should reject an unknown history backend")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	isolate(t)

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte("driver:\n  interface: from-file\n"), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LINKWATCH")
	v.AutomaticEnv()

	// Simulate env var by setting directly in viper (env binding happens in CLI)
	v.Set("driver.interface", "from-env")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Driver.Interface != "from-env" {
		t.Errorf("Driver.Interface = %q, want %q", cfg.Driver.Interface, "from-env")
	}
}

func TestLoadConfig_DurationParsing(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantDur time.Duration
		get     func(*Config) time.Duration
	}{
		{
			name:    "seconds",
			yaml:    "monitor:\n  poll_interval: 30s",
			wantDur: 30 * time.Second,
			get:     func(c *Config) time.Duration { return c.Monitor.PollInterval },
		},
		{
			name:    "minutes",
			yaml:    "monitor:\n  connect_timeout: 2m",
			wantDur: 2 * time.Minute,
			get:     func(c *Config) time.Duration { return c.Monitor.ConnectTimeout },
		},
		{
			name:    "milliseconds",
			yaml:    "notify:\n  timeout: 250ms",
			wantDur: 250 * time.Millisecond,
			get:     func(c *Config) time.Duration { return c.Notify.Timeout },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := isolate(t)
			configPath := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write config failed: %v", err)
			}

			v := viper.New()
			v.Set("config", configPath)

			cfg, err := LoadConfig(v)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if got := tt.get(cfg); got != tt.wantDur {
				t.Errorf("got %v, want %v", got, tt.wantDur)
			}
		})
	}
}

func TestGlobalConfigPath(t *testing.T) {
	tmpDir := isolate(t)

	if got := globalConfigPath(); got != "" {
		t.Errorf("globalConfigPath() = %q, want empty when file is absent", got)
	}

	dir := filepath.Join(tmpDir, "xdg", GlobalConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	want := filepath.Join(dir, GlobalConfigFile)
	if err := os.WriteFile(want, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if got := globalConfigPath(); got != want {
		t.Errorf("globalConfigPath() = %q, want %q", got, want)
	}
}
