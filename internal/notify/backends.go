package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"

	"github.com/npratt/linkwatch/internal/config"
	"github.com/npratt/linkwatch/internal/testutil"
)

// ErrDisabled is returned by the none backend's Authorize.
var ErrDisabled = errors.New("notifications disabled by configuration")

// NewBackend builds the backend named in cfg.
func NewBackend(cfg config.NotifyConfig, runner testutil.CommandRunner) (Backend, error) {
	switch cfg.Backend {
	case "desktop":
		return NewDesktopBackend(runner, cfg.Command), nil
	case "webhook":
		return NewWebhookBackend(cfg.WebhookURL, nil), nil
	case "none", "":
		return NoneBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

// DesktopBackend shows notifications with notify-send (or a compatible
// command taking title and body as its last two arguments).
type DesktopBackend struct {
	runner   testutil.CommandRunner
	command  string
	lookPath func(string) (string, error)
}

// NewDesktopBackend creates a desktop backend. command defaults to
// "notify-send".
func NewDesktopBackend(runner testutil.CommandRunner, command string) *DesktopBackend {
	if command == "" {
		command = "notify-send"
	}
	return &DesktopBackend{runner: runner, command: command, lookPath: exec.LookPath}
}

// Name returns "desktop".
func (b *DesktopBackend) Name() string { return "desktop" }

// Authorize checks that the command is installed.
func (b *DesktopBackend) Authorize(context.Context) error {
	if _, err := b.lookPath(b.command); err != nil {
		return fmt.Errorf("%s not available: %w", b.command, err)
	}
	return nil
}

// Deliver runs the command.
func (b *DesktopBackend) Deliver(ctx context.Context, m Message) error {
	urgency := "low"
	if m.Kind == KindConnectionFailed || m.Kind == KindDisconnected {
		urgency = "normal"
	}
	_, err := b.runner.Run(ctx, b.command,
		"--app-name=linkwatch",
		"--urgency="+urgency,
		m.Title, m.Body)
	return err
}

// WebhookBackend POSTs each message as JSON.
type WebhookBackend struct {
	url    string
	client *http.Client
}

// NewWebhookBackend creates a webhook backend. A nil client uses
// http.DefaultClient; per-delivery timeouts come from the context.
func NewWebhookBackend(target string, client *http.Client) *WebhookBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookBackend{url: target, client: client}
}

// Name returns "webhook".
func (b *WebhookBackend) Name() string { return "webhook" }

// Authorize checks that the URL is usable.
func (b *WebhookBackend) Authorize(context.Context) error {
	if b.url == "" {
		return errors.New("webhook url not configured")
	}
	u, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url: unsupported scheme %q", u.Scheme)
	}
	return nil
}

// Deliver posts m. Any non-2xx status is an error.
func (b *WebhookBackend) Deliver(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "linkwatch")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// NoneBackend never delivers.
type NoneBackend struct{}

// Name returns "none".
func (NoneBackend) Name() string { return "none" }

// Authorize always denies.
func (NoneBackend) Authorize(context.Context) error { return ErrDisabled }

// Deliver is a no-op.
func (NoneBackend) Deliver(context.Context, Message) error { return nil }
