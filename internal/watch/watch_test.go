package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "networks.yaml")
	other := filepath.Join(dir, "other.yaml")

	rec := &recorder{}
	w, err := New([]string{target}, rec.record, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(other, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("networks: []\n"), 0600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return rec.count() >= 1 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range rec.paths {
		if p != target {
			t.Errorf("unexpected change reported for %s", p)
		}
	}
}

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.yaml")

	rec := &recorder{}
	w, err := New([]string{target}, rec.record, WithDebounce(300*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(target, []byte{byte('a' + i)}, 0600); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return rec.count() >= 1 })
	time.Sleep(400 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("onChange ran %d times, want 1", n)
	}
}

func TestWatcherStartTwice(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "f")}, func(string) {})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestNewRequiresPaths(t *testing.T) {
	if _, err := New(nil, func(string) {}); err == nil {
		t.Error("New should reject an empty path list")
	}
}

func TestStopWithoutStart(t *testing.T) {
	w, err := New([]string{"x"}, func(string) {})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Stop()
}
