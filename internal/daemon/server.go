package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	// maxMessageSize bounds one request.
	maxMessageSize = 64 * 1024
	readTimeout    = 10 * time.Second
	// socketPermissions keep the socket private to the user.
	socketPermissions = 0600
)

// ErrAlreadyServing is returned by Start on a running daemon.
var ErrAlreadyServing = errors.New("daemon already running")

// Start listens on the socket and serves requests until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyServing
	}
	d.mu.Unlock()

	// A socket left behind by a crashed daemon blocks Listen.
	_ = os.Remove(d.sockPath)

	listener, err := net.Listen("unix", d.sockPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(d.sockPath, socketPermissions); err != nil {
		_ = listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	d.mu.Lock()
	d.listener = listener
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info("control socket listening", "socket", d.sockPath)

	go d.serve(ctx, listener)

	<-ctx.Done()
	return d.Stop()
}

// Stop closes the listener and removes the socket. It is idempotent.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	if d.listener != nil {
		if err := d.listener.Close(); err != nil {
			d.logger.Error("error closing listener", "error", err)
		}
		d.listener = nil
	}
	_ = os.Remove(d.sockPath)

	d.logger.Info("control socket closed")
	return nil
}

func (d *Daemon) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || !d.Running() {
				return
			}
			d.logger.Error("accept error", "error", err)
			continue
		}
		go d.handleConnection(ctx, conn)
	}
}

// handleConnection serves one request per connection.
func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		d.logger.Error("set read deadline error", "error", err)
		return
	}

	decoder := json.NewDecoder(io.LimitReader(conn, maxMessageSize))
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(Response{Error: fmt.Sprintf("decode error: %v", err)})
		return
	}

	resp := d.dispatch(ctx, &req)
	resp.ID = req.ID
	if err := encoder.Encode(resp); err != nil {
		d.logger.Debug("write response failed", "method", req.Method, "error", err)
	}
}

// dispatch runs a handler and turns a panic into an error response.
func (d *Daemon) dispatch(ctx context.Context, req *Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("rpc handler panicked", "method", req.Method, "panic", fmt.Sprint(r))
			resp = Response{Error: "internal error"}
		}
	}()
	d.logger.Debug("rpc request", "method", req.Method)
	return d.handleRequest(ctx, req)
}

// decodeParams converts the generic params of a decoded request into v.
func decodeParams(params any, v any) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
