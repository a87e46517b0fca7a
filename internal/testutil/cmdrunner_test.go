package testutil

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestMockRunner_RecordsCalls(t *testing.T) {
	mock := NewMockRunner()
	mock.SetResponse("iw", []string{"dev", "wlan0", "link"}, []byte("Not connected.\n"))

	_, _ = mock.Run(context.Background(), "iw", "dev", "wlan0", "link")

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if got := calls[0].String(); got != "iw dev wlan0 link" {
		t.Errorf("call = %q, want %q", got, "iw dev wlan0 link")
	}
}

func TestMockRunner_RunWithStdin(t *testing.T) {
	mock := NewMockRunner()
	mock.SetResponse("nmcli", nil, []byte("ok"))

	buf := []byte("secret\n")
	out, err := mock.RunWithStdin(context.Background(), bytes.NewReader(buf), "nmcli", "--ask")
	if err != nil || string(out) != "ok" {
		t.Fatalf("RunWithStdin = %q, %v", out, err)
	}
	for i := range buf {
		buf[i] = 0
	}

	calls := mock.GetCalls()
	if len(calls) != 1 || calls[0].Stdin != "secret\n" {
		t.Errorf("calls = %+v, want stdin recorded as a copy", calls)
	}
}

func TestMockRunner_Lookup(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *MockRunner)
		cmd     string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name:  "exact response",
			setup: func(m *MockRunner) { m.SetResponse("iw", []string{"dev"}, []byte("ok")) },
			cmd:   "iw",
			args:  []string{"dev"},
			want:  "ok",
		},
		{
			name:  "no args",
			setup: func(m *MockRunner) { m.Responses["notify-send"] = []byte("") },
			cmd:   "notify-send",
			want:  "",
		},
		{
			name:  "prefix response",
			setup: func(m *MockRunner) { m.Responses["nmcli device wifi connect"] = []byte("done") },
			cmd:   "nmcli",
			args:  []string{"device", "wifi", "connect", "Home", "ifname", "wlan0"},
			want:  "done",
		},
		{
			name: "error wins over response",
			setup: func(m *MockRunner) {
				m.SetResponse("nmcli", []string{"x"}, []byte("ok"))
				m.SetError("nmcli", []string{"x"}, errors.New("boom"))
			},
			cmd:     "nmcli",
			args:    []string{"x"},
			wantErr: true,
		},
		{
			name:    "unexpected command",
			setup:   func(m *MockRunner) {},
			cmd:     "unknown",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockRunner()
			tt.setup(mock)

			out, err := mock.Run(context.Background(), tt.cmd, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(out) != tt.want {
				t.Errorf("out = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestMockRunner_QueueResponse(t *testing.T) {
	mock := NewMockRunner()
	args := []string{"dev", "wlan0", "link"}
	mock.SetResponse("iw", args, []byte("fixed"))
	mock.QueueResponse("iw", args, []byte("first"), nil)
	mock.QueueResponse("iw", args, nil, errors.New("second"))

	ctx := context.Background()

	out, err := mock.Run(ctx, "iw", args...)
	if err != nil || string(out) != "first" {
		t.Errorf("first run = %q, %v", out, err)
	}
	if _, err := mock.Run(ctx, "iw", args...); err == nil || err.Error() != "second" {
		t.Errorf("second run err = %v, want second", err)
	}
	out, err = mock.Run(ctx, "iw", args...)
	if err != nil || string(out) != "fixed" {
		t.Errorf("third run = %q, %v; want fixed", out, err)
	}
}

func TestMockRunner_DynamicResponse(t *testing.T) {
	mock := NewMockRunner()
	mock.Responses["iw"] = []byte("static")
	mock.DynamicResponse = func(_ context.Context, name string, args []string) ([]byte, error, bool) {
		if len(args) > 0 && args[0] == "dynamic" {
			return []byte("dyn"), nil, true
		}
		return nil, nil, false
	}

	ctx := context.Background()
	if out, _ := mock.Run(ctx, "iw", "dynamic"); string(out) != "dyn" {
		t.Errorf("dynamic out = %q", out)
	}
	if out, _ := mock.Run(ctx, "iw", "other"); string(out) != "static" {
		t.Errorf("fallthrough out = %q", out)
	}
}

func TestMockRunner_GetCallsReturnsCopy(t *testing.T) {
	mock := NewMockRunner()
	mock.Responses["test"] = []byte("ok")
	_, _ = mock.Run(context.Background(), "test")

	calls := mock.GetCalls()
	calls[0].Name = "modified"

	if mock.GetCalls()[0].Name == "modified" {
		t.Error("GetCalls should return a copy, not the original")
	}
}

func TestMockRunner_Reset(t *testing.T) {
	mock := NewMockRunner()
	mock.Responses["test"] = []byte("ok")
	mock.QueueResponse("test", nil, []byte("queued"), nil)

	ctx := context.Background()
	_, _ = mock.Run(ctx, "test")
	mock.QueueResponse("test", nil, []byte("queued again"), nil)
	mock.Reset()

	if len(mock.GetCalls()) != 0 {
		t.Error("expected 0 calls after reset")
	}
	if out, _ := mock.Run(ctx, "test"); string(out) != "ok" {
		t.Errorf("queued results should be dropped by Reset, got %q", out)
	}
}

func TestMockRunner_ThreadSafety(t *testing.T) {
	mock := NewMockRunner()
	mock.Responses["test"] = []byte("ok")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mock.Run(context.Background(), "test")
			_ = mock.GetCalls()
		}()
	}
	wg.Wait()

	if n := len(mock.GetCalls()); n != 10 {
		t.Errorf("expected 10 calls, got %d", n)
	}
}

func TestExecRunner(t *testing.T) {
	r := NewExecRunner()
	ctx := context.Background()

	t.Run("stdout", func(t *testing.T) {
		out, err := r.Run(ctx, "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(string(out)) != "hello" {
			t.Errorf("out = %q, want hello", out)
		}
	})

	t.Run("stderr folded into error", func(t *testing.T) {
		_, err := r.Run(ctx, "sh", "-c", "echo nope >&2; exit 3")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "nope") {
			t.Errorf("error %q should contain stderr", err)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		out, err := r.RunWithStdin(ctx, strings.NewReader("piped\n"), "cat")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(out) != "piped\n" {
			t.Errorf("out = %q, want piped", out)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		if _, err := r.Run(ctx, "linkwatch-no-such-binary"); err == nil {
			t.Error("expected error for missing binary")
		}
	})
}
