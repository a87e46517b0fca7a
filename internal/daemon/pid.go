package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned by Write when another process holds the pid file.
var ErrLocked = errors.New("daemon already running (pid file locked)")

// PIDFile is a pid file guarded by flock so only one daemon runs per
// state directory.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PIDFile instance for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Write creates and locks the PID file, writing the current process ID.
// Returns an error if another process holds the lock.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("lock pid file: %w", err)
	}

	if err := writePID(file); err != nil {
		p.unlockAndClose(file)
		return err
	}
	p.file = file
	return nil
}

// writePID replaces the file content with the current pid.
func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync pid file: %w", err)
	}
	return nil
}

// Read returns the recorded pid, or 0 when the file is missing or garbled.
func (p *PIDFile) Read() int {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Remove releases the lock and removes the PID file.
func (p *PIDFile) Remove() error {
	if p.file != nil {
		p.unlockAndClose(p.file)
		p.file = nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// unlockAndClose releases the flock and closes the file.
func (p *PIDFile) unlockAndClose(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

// IsProcessRunning probes pid with signal 0.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsRunning reports whether the recorded process is alive.
func (p *PIDFile) IsRunning() bool {
	pid := p.Read()
	return IsProcessRunning(pid)
}

// CleanupStale removes the pid file, socket and daemon.json left by a
// daemon that is no longer alive.
func (p *PIDFile) CleanupStale(extra ...string) {
	if p.IsRunning() {
		return
	}
	_ = os.Remove(p.path)
	for _, path := range extra {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}
