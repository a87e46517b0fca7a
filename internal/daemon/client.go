package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultClientTimeout bounds one client call.
const DefaultClientTimeout = 5 * time.Second

// ErrNotRunning is returned when no daemon answers on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client talks to a daemon over its Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a client for the daemon listening on sockPath.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends one request and decodes the result into out when non-nil.
func (c *Client) call(method string, params, out any) error {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(Request{Method: method, Params: params}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// wrapConnError converts dial errors to user-facing messages.
func (c *Client) wrapConnError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return fmt.Errorf("%w (socket not found)", ErrNotRunning)
		case syscall.ECONNREFUSED:
			return fmt.Errorf("%w (connection refused)", ErrNotRunning)
		}
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%w (socket not found)", ErrNotRunning)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	if err := c.call(MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// History returns up to limit entries, optionally filtered to ssid.
func (c *Client) History(limit int, ssid string) (*HistoryResponse, error) {
	var h HistoryResponse
	if err := c.call(MethodHistory, HistoryParams{Limit: limit, SSID: ssid}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ClearHistory empties the connection history.
func (c *Client) ClearHistory() error {
	return c.call(MethodClearHistory, nil, nil)
}

// Reload asks the daemon to re-read preferences and credentials.
func (c *Client) Reload() (*ReloadResponse, error) {
	var r ReloadResponse
	if err := c.call(MethodReload, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() error {
	return c.call(MethodStop, nil, nil)
}

// IsRunning reports whether something accepts connections on the socket.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
