// Package config provides configuration types and defaults for linkwatch.
package config

import "time"

// Config holds all configuration for linkwatch.
type Config struct {
	Monitor     MonitorConfig     `yaml:"monitor" mapstructure:"monitor"`
	Preferences Preferences       `yaml:"preferences" mapstructure:"preferences"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Driver      DriverConfig      `yaml:"driver" mapstructure:"driver"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// MonitorConfig holds link polling and reconnect settings.
type MonitorConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gt=0"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay" validate:"gte=0"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts" validate:"gte=0"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"gte=0"` // 0 = no timeout
}

// Preferences are the user-facing toggles. They can change while the daemon
// runs; see LivePreferences.
type Preferences struct {
	Notifications          bool `yaml:"notifications" mapstructure:"notifications"`
	AutoConnect            bool `yaml:"auto_connect" mapstructure:"auto_connect"`
	AutoReconnect          bool `yaml:"auto_reconnect" mapstructure:"auto_reconnect"`
	ShowConnectionDuration bool `yaml:"show_connection_duration" mapstructure:"show_connection_duration"`
}

// HistoryConfig holds connection history persistence settings.
type HistoryConfig struct {
	Backend                 string `yaml:"backend" mapstructure:"backend" validate:"oneof=file badger"`
	Key                     string `yaml:"key" mapstructure:"key" validate:"required"`
	Capacity                int    `yaml:"capacity" mapstructure:"capacity" validate:"gt=0"`
	DisplayLimit            int    `yaml:"display_limit" mapstructure:"display_limit" validate:"gt=0"`
	RecordReconnectFailures bool   `yaml:"record_reconnect_failures" mapstructure:"record_reconnect_failures"`
}

// CredentialsConfig holds saved network credential settings.
type CredentialsConfig struct {
	Path  string `yaml:"path" mapstructure:"path" validate:"required"`
	Watch bool   `yaml:"watch" mapstructure:"watch"` // Reload when the file changes
}

// DriverConfig holds the commands used to talk to the wireless driver.
type DriverConfig struct {
	Interface      string `yaml:"interface" mapstructure:"interface" validate:"required"`
	LinkCommand    string `yaml:"link_command" mapstructure:"link_command" validate:"required"`
	ConnectCommand string `yaml:"connect_command" mapstructure:"connect_command" validate:"required"`
}

// NotifyConfig holds notification delivery settings.
type NotifyConfig struct {
	Backend    string        `yaml:"backend" mapstructure:"backend" validate:"oneof=desktop webhook none"`
	Command    string        `yaml:"command" mapstructure:"command"`                                         // Desktop notifier binary
	WebhookURL string        `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`        // Webhook target
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`                         // Per-delivery timeout
	QueueSize  int           `yaml:"queue_size" mapstructure:"queue_size" validate:"gt=0"`                   // Pending notifications
	RatePerSec float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gt=0"`               // Sustained delivery rate
	Burst      int           `yaml:"burst" mapstructure:"burst" validate:"gt=0"`                             // Burst allowance
}

// MetricsConfig holds the optional HTTP metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
}

// PathsConfig holds file paths for state, logs, and socket.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`   // History file (file backend)
	DB     string `yaml:"db" mapstructure:"db"`         // Badger directory (badger backend)
	Log    string `yaml:"log" mapstructure:"log"`       // Event log (JSON lines)
	Socket string `yaml:"socket" mapstructure:"socket"` // Control socket
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// HistoryStorePath returns the path the configured history backend opens.
func (c *Config) HistoryStorePath() string {
	if c.History.Backend == "badger" {
		return c.Paths.DB
	}
	return c.Paths.State
}

// LogRotationConfig holds settings for log file rotation.
// Used for the daemon debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with the reference behaviour: 5s polling, 2s
// reconnect delay, three attempts per episode, 100 history entries.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval:         5 * time.Second,
			ReconnectDelay:       2 * time.Second,
			MaxReconnectAttempts: 3,
			ConnectTimeout:       60 * time.Second,
		},
		Preferences: Preferences{
			Notifications:          true,
			AutoConnect:            true,
			AutoReconnect:          true,
			ShowConnectionDuration: false,
		},
		History: HistoryConfig{
			Backend:      "file",
			Key:          "ConnectionHistory",
			Capacity:     100,
			DisplayLimit: 20,
		},
		Credentials: CredentialsConfig{
			Path:  ".linkwatch/networks.yaml",
			Watch: true,
		},
		Driver: DriverConfig{
			Interface:      "wlan0",
			LinkCommand:    "iw",
			ConnectCommand: "nmcli",
		},
		Notify: NotifyConfig{
			Backend:    "desktop",
			Command:    "notify-send",
			Timeout:    5 * time.Second,
			QueueSize:  32,
			RatePerSec: 1,
			Burst:      4,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9477",
		},
		Paths: PathsConfig{
			State:  ".linkwatch/history.json",
			DB:     ".linkwatch/history.db",
			Log:    ".linkwatch/events.log",
			Socket: ".linkwatch/linkwatch.sock",
			PID:    ".linkwatch/linkwatch.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
