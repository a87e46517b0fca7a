package driver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/npratt/linkwatch/internal/testutil"
)

// IWReader reads link state with `iw dev <iface> link`.
type IWReader struct {
	runner  testutil.CommandRunner
	command string
	iface   string
}

// NewIWReader creates a reader for iface. command defaults to "iw".
func NewIWReader(runner testutil.CommandRunner, command, iface string) *IWReader {
	if command == "" {
		command = "iw"
	}
	return &IWReader{runner: runner, command: command, iface: iface}
}

// QueryLinkState runs iw and parses its output. A command failure is
// returned as an error together with StateError.
func (r *IWReader) QueryLinkState(ctx context.Context) (Status, error) {
	out, err := r.runner.Run(ctx, r.command, "dev", r.iface, "link")
	if err != nil {
		return Status{State: StateError}, fmt.Errorf("query link state of %s: %w", r.iface, err)
	}
	return ParseIWLink(out), nil
}

// ParseIWLink parses `iw dev <iface> link` output. Output it does not
// recognise yields StateError.
//
// Connected output looks like:
//
//	Connected to 11:22:33:44:55:66 (on wlan0)
//		SSID: Home
//		freq: 5180
//		signal: -52 dBm
func ParseIWLink(out []byte) Status {
	trimmed := bytes.TrimSpace(out)
	if bytes.HasPrefix(trimmed, []byte("Not connected")) {
		return Status{State: StateNotConnected}
	}
	if !bytes.HasPrefix(trimmed, []byte("Connected to")) {
		return Status{State: StateError}
	}

	st := Status{State: StateConnected}
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "SSID:"):
			st.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			fields := strings.Fields(strings.TrimPrefix(line, "signal:"))
			if len(fields) == 0 {
				continue
			}
			if v, err := strconv.Atoi(fields[0]); err == nil {
				st.RSSI = &v
			}
		}
	}

	// Associated but no ssid yet is a transitional state.
	if st.SSID == "" {
		return Status{State: StateError}
	}
	return st
}
