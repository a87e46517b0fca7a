package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npratt/linkwatch/internal/testutil"
)

const (
	connectedLine    = `{"id":"1","type":"link.connected","timestamp":"2026-03-14T12:00:00Z","source":"supervisor","ssid":"Home"}`
	disconnectedLine = `{"id":"2","type":"link.disconnected","timestamp":"2026-03-14T12:05:00Z","source":"supervisor","ssid":"Home","duration_ms":300000,"reason":"link_down"}`
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTailLast(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tailLast(&buf, filepath.Join(t.TempDir(), "events.log"), 10); err != nil {
			t.Fatalf("tailLast failed: %v", err)
		}
		if !strings.Contains(buf.String(), "No events yet") {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("last n lines", func(t *testing.T) {
		content := strings.Join([]string{connectedLine, "not json", disconnectedLine}, "\n") + "\n"
		path := testutil.WriteFile(t, t.TempDir(), "events.log", content)

		var buf bytes.Buffer
		if err := tailLast(&buf, path, 2); err != nil {
			t.Fatalf("tailLast failed: %v", err)
		}
		out := buf.String()
		if strings.Contains(out, "[+] connected to") {
			t.Errorf("first line should be skipped:\n%s", out)
		}
		if !strings.Contains(out, "not json\n") {
			t.Errorf("raw line not passed through:\n%s", out)
		}
		if !strings.Contains(out, `[-] disconnected from "Home" after 5m0s (link_down)`) {
			t.Errorf("disconnect event not formatted:\n%s", out)
		}
		if got := strings.Count(out, "\n"); got != 2 {
			t.Errorf("printed %d lines, want 2:\n%s", got, out)
		}
	})
}

func TestPrintEventLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"known event", connectedLine, `[+] connected to "Home"`},
		{"unknown type", `{"type":"future.event"}`, `{"type":"future.event"}`},
		{"plain text", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEventLine(&buf, tt.line)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}

	var buf bytes.Buffer
	printEventLine(&buf, "   ")
	if buf.Len() != 0 {
		t.Errorf("blank line printed %q", buf.String())
	}
}

func TestTailFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte(connectedLine+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- tailFollow(ctx, out, path) }()

	eventually(t, "follow banner", func() bool { return strings.Contains(out.String(), "Following events") })

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	// A line written in two parts is printed once, whole.
	_, _ = f.WriteString(disconnectedLine[:20])
	time.Sleep(3 * followPollInterval)
	_, _ = f.WriteString(disconnectedLine[20:] + "\n")
	_ = f.Close()

	eventually(t, "appended event", func() bool { return strings.Contains(out.String(), "(link_down)") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("tailFollow returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tailFollow did not stop")
	}

	got := out.String()
	if strings.Contains(got, "[+] connected") || strings.Count(got, "[-] disconnected") != 1 {
		t.Errorf("want only the appended event, got:\n%s", got)
	}
}
