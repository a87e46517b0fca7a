package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/npratt/linkwatch/internal/credentials"
	"github.com/npratt/linkwatch/internal/testutil"
)

// ErrUnsupportedSecurity is returned for schemes nmcli cannot join from
// a single password.
var ErrUnsupportedSecurity = errors.New("unsupported security scheme")

// NMCLIConnector joins networks with `nmcli device wifi connect`.
type NMCLIConnector struct {
	runner  testutil.CommandRunner
	command string
	iface   string
}

// NewNMCLIConnector creates a connector for iface. command defaults to "nmcli".
func NewNMCLIConnector(runner testutil.CommandRunner, command, iface string) *NMCLIConnector {
	if command == "" {
		command = "nmcli"
	}
	return &NMCLIConnector{runner: runner, command: command, iface: iface}
}

// Connect runs nmcli and returns its error. A password is answered on
// stdin through `--ask` and never appears in argv. The locked buffer is
// destroyed once the runner returns.
func (c *NMCLIConnector) Connect(ctx context.Context, req Request) error {
	if req.SSID == "" {
		return errors.New("connect: empty ssid")
	}

	// nmcli always writes a profile on success, so SaveOnSuccess is not
	// expressible here.
	args := []string{"device", "wifi", "connect", req.SSID, "ifname", c.iface}

	var err error
	switch {
	case req.Auth == nil || req.Auth.Security == credentials.SecurityOpen:
		_, err = c.runner.Run(ctx, c.command, args...)
	case req.Auth.Security == credentials.SecurityWPAPSK:
		secret, openErr := req.Auth.Open()
		if openErr != nil {
			return fmt.Errorf("connect %q: %w", req.SSID, openErr)
		}
		defer secret.Destroy()
		stdin := io.MultiReader(bytes.NewReader(secret.Bytes()), bytes.NewReader([]byte{'\n'}))
		_, err = c.runner.RunWithStdin(ctx, stdin, c.command, append([]string{"--ask"}, args...)...)
	default:
		return fmt.Errorf("connect %q: %w: %s", req.SSID, ErrUnsupportedSecurity, req.Auth.Security)
	}
	if err != nil {
		return fmt.Errorf("connect %q: %w", req.SSID, err)
	}
	return nil
}
