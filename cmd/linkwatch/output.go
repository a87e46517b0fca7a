package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/npratt/linkwatch/internal/daemon"
	"github.com/npratt/linkwatch/internal/history"
	"github.com/npratt/linkwatch/internal/supervisor"
)

// Colors for CLI output.
var (
	colorOK     = lipgloss.Color("#2CD7C7")
	colorWarn   = lipgloss.Color("#F4D03F")
	colorError  = lipgloss.Color("#E74C3C")
	colorMuted  = lipgloss.Color("#6C7A80")
	colorHeader = lipgloss.Color("#20B9B4")
)

// styles are bound to one writer. Writers that are not terminals get
// unstyled output so pipes and files stay plain text.
type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	if !isTerminal(w) {
		plain := r.NewStyle()
		return styles{header: plain, label: plain, ok: plain, warn: plain, err: plain, muted: plain}
	}
	return styles{
		header: r.NewStyle().Bold(true).Foreground(colorHeader),
		label:  r.NewStyle().Bold(true),
		ok:     r.NewStyle().Foreground(colorOK),
		warn:   r.NewStyle().Foreground(colorWarn),
		err:    r.NewStyle().Foreground(colorError),
		muted:  r.NewStyle().Foreground(colorMuted),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s styles) state(st supervisor.State) string {
	switch st {
	case supervisor.StateConnected:
		return s.ok.Render(string(st))
	case supervisor.StateReconnecting:
		return s.warn.Render(string(st))
	default:
		return s.muted.Render(string(st))
	}
}

// renderStatus writes the status report. showDuration adds the length of
// the open session.
func renderStatus(w io.Writer, st *daemon.StatusResponse, showDuration bool, now time.Time) {
	s := newStyles(w)
	snap := st.Supervisor
	line := func(label, value string) {
		_, _ = fmt.Fprintf(w, "%s %s\n", s.label.Render(fmt.Sprintf("%-14s", label+":")), value)
	}

	line("State", s.state(snap.State))
	if snap.Session != nil {
		network := fmt.Sprintf("%q", snap.Session.SSID)
		if showDuration {
			network += s.muted.Render(fmt.Sprintf(" (connected %s)", formatDuration(now.Sub(snap.Session.StartedAt))))
		}
		line("Network", network)
	} else {
		line("Network", s.muted.Render("none"))
		if last := st.LastConnection; last != nil {
			line("Last network", fmt.Sprintf("%q %s", last.SSID, s.muted.Render(formatWhen(last.ConnectedAt, now))))
		}
	}
	line("Link", snap.LinkState)
	if snap.RSSI != nil {
		line("Signal", fmt.Sprintf("%d dBm", *snap.RSSI))
	}
	if snap.Attempts > 0 || snap.AttemptInFlight {
		reconnect := fmt.Sprintf("attempt %d/%d", snap.Attempts, snap.MaxAttempts)
		if snap.AttemptInFlight {
			reconnect += fmt.Sprintf(", joining %q", snap.AttemptSSID)
		}
		line("Reconnect", s.warn.Render(reconnect))
	}
	if snap.LastPoll != nil {
		line("Last poll", snap.LastPoll.Local().Format("15:04:05"))
	}
	if snap.LastError != "" {
		line("Last error", s.err.Render(snap.LastError))
	}
	line("Polls", fmt.Sprintf("%d", snap.Polls))
	line("Uptime", st.Uptime)
	line("History", fmt.Sprintf("%d entries", st.HistorySize))
	if n := st.Notifications; n != nil {
		line("Notifications", fmt.Sprintf("delivered %d, failed %d, suppressed %d, dropped %d",
			n.Delivered, n.Failed, n.Suppressed, n.Dropped))
	}
}

// renderHistory writes entries as a table, newest first.
func renderHistory(w io.Writer, entries []history.Entry, now time.Time) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No connection history")
		return
	}
	s := newStyles(w)

	ssidWidth := len("SSID")
	for _, e := range entries {
		ssidWidth = max(ssidWidth, len(e.SSID))
	}
	ssidWidth = min(ssidWidth, 32)

	header := fmt.Sprintf("%-*s  %-19s  %-10s  %s", ssidWidth, "SSID", "CONNECTED", "DURATION", "STATUS")
	_, _ = fmt.Fprintln(w, s.header.Render(header))

	for _, e := range entries {
		ssid := e.SSID
		if len(ssid) > ssidWidth {
			ssid = ssid[:ssidWidth-1] + "~"
		}

		var dur string
		if d, ok := e.Duration(); ok {
			dur = formatDuration(d)
		} else if e.Success {
			dur = "active"
		} else {
			dur = "-"
		}
		dur = fmt.Sprintf("%-10s", dur)
		if e.IsOpen() && e.Success {
			dur = s.ok.Render(dur)
		}

		status := s.ok.Render("ok")
		if !e.Success {
			status = s.err.Render("failed")
			if r := e.Reason(); r != "" {
				status += s.muted.Render(": " + r)
			}
		}

		_, _ = fmt.Fprintf(w, "%-*s  %-19s  %s  %s\n",
			ssidWidth, ssid,
			formatWhen(e.ConnectedAt, now),
			dur,
			status,
		)
	}
}

// formatWhen prints the clock time for today and the date otherwise.
func formatWhen(t, now time.Time) string {
	t = t.Local()
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Local().Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04:05")
	}
	return t.Format("2006-01-02 15:04")
}

// formatDuration renders d as "45s", "12m", "3h 20m" or "2d 4h".
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		if h == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd %dh", days, h)
	}
}
