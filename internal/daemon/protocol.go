package daemon

import (
	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/notify"
	"github.com/npratt/linkwatch/internal/supervisor"
)

// RPC method names.
const (
	MethodStatus       = "status"
	MethodHistory      = "history"
	MethodClearHistory = "clear_history"
	MethodReload       = "reload"
	MethodStop         = "stop"
)

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse is the result of the status method.
type StatusResponse struct {
	Supervisor  supervisor.Snapshot `json:"supervisor"`
	Uptime      string              `json:"uptime"`
	StartTime   string              `json:"start_time"`
	HistorySize int                 `json:"history_size"`
	// LastConnection is the most recent successful history entry.
	LastConnection *history.Entry `json:"last_connection,omitempty"`
	Notifications  *notify.Stats  `json:"notifications,omitempty"`
}

// HistoryParams are the parameters of the history method. Limit <= 0
// selects the configured display limit; SSID filters when set.
type HistoryParams struct {
	Limit int    `json:"limit,omitempty"`
	SSID  string `json:"ssid,omitempty"`
}

// HistoryResponse is the result of the history method.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// ReloadResponse is the result of the reload method.
type ReloadResponse struct {
	Networks int `json:"networks"`
}
