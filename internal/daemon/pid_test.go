package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPIDFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "linkwatch.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if got := pf.Read(); got != os.Getpid() {
		t.Errorf("Read() = %d, want %d", got, os.Getpid())
	}
	if !pf.IsRunning() {
		t.Error("IsRunning() should be true for our own pid")
	}

	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file should be gone after Remove()")
	}
	if err := pf.Remove(); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}

func TestPIDFileLockedByOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkwatch.pid")

	first := NewPIDFile(path)
	if err := first.Write(); err != nil {
		t.Fatalf("first Write() error: %v", err)
	}
	defer func() { _ = first.Remove() }()

	if err := NewPIDFile(path).Write(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Write() error = %v, want ErrLocked", err)
	}
}

func TestPIDFileRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"valid", "4242\n", 4242},
		{"garbage", "not-a-pid", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.pid")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if got := NewPIDFile(path).Read(); got != tt.want {
				t.Errorf("Read() = %d, want %d", got, tt.want)
			}
		})
	}

	if got := NewPIDFile(filepath.Join(t.TempDir(), "missing.pid")).Read(); got != 0 {
		t.Errorf("Read() of missing file = %d", got)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("current process should be running")
	}
	for _, pid := range []int{0, -1, 1 << 30} {
		if IsProcessRunning(pid) {
			t.Errorf("IsProcessRunning(%d) = true", pid)
		}
	}
}

func TestCleanupStale(t *testing.T) {
	t.Run("dead process", func(t *testing.T) {
		tmp := t.TempDir()
		pidPath := filepath.Join(tmp, "linkwatch.pid")
		sock := filepath.Join(tmp, "linkwatch.sock")
		info := filepath.Join(tmp, "daemon.json")
		for _, p := range []string{sock, info} {
			if err := os.WriteFile(p, nil, 0600); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(1<<30)), 0644); err != nil {
			t.Fatal(err)
		}

		NewPIDFile(pidPath).CleanupStale(sock, info, "")

		for _, p := range []string{pidPath, sock, info} {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("%s should be removed", filepath.Base(p))
			}
		}
	})

	t.Run("live process", func(t *testing.T) {
		tmp := t.TempDir()
		pidPath := filepath.Join(tmp, "linkwatch.pid")
		sock := filepath.Join(tmp, "linkwatch.sock")
		if err := os.WriteFile(sock, nil, 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			t.Fatal(err)
		}

		NewPIDFile(pidPath).CleanupStale(sock)

		if _, err := os.Stat(sock); err != nil {
			t.Error("socket of a live daemon must be kept")
		}
	})
}
