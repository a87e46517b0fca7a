package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"
	FlagInterface  = "interface"

	// Start command flags
	FlagDaemon      = "daemon"
	FlagMetrics     = "serve-metrics"
	FlagMetricsAddr = "metrics-addr"

	// History command flags
	FlagLimit = "limit"
	FlagSSID  = "ssid"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"
)
