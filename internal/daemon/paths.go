package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/linkwatch/internal/config"
)

// DaemonInfo is written to daemon.json so CLI commands can find a running
// daemon from any subdirectory of the project.
type DaemonInfo struct {
	SocketPath  string    `json:"socket_path"`
	PIDPath     string    `json:"pid_path"`
	LogPath     string    `json:"log_path"`
	Interface   string    `json:"interface"`
	MetricsAddr string    `json:"metrics_addr,omitempty"`
	StartTime   time.Time `json:"start_time"`
	PID         int       `json:"pid"`
}

const daemonInfoFile = "daemon.json"

// projectMarkers are directories that mark a project root.
var projectMarkers = []string{config.ProjectConfigDir, ".git"}

// ResolvePaths makes relative paths absolute against basePath, or the
// working directory when basePath is empty.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
		basePath = wd
	}

	return config.PathsConfig{
		State:  resolvePath(basePath, paths.State),
		DB:     resolvePath(basePath, paths.DB),
		Log:    resolvePath(basePath, paths.Log),
		Socket: resolvePath(basePath, paths.Socket),
		PID:    resolvePath(basePath, paths.PID),
	}, nil
}

// ResolveConfig resolves every file path in cfg in place.
func ResolveConfig(cfg *config.Config, basePath string) error {
	paths, err := ResolvePaths(cfg.Paths, basePath)
	if err != nil {
		return err
	}
	cfg.Paths = paths
	if basePath == "" {
		basePath, _ = os.Getwd()
	}
	cfg.Credentials.Path = resolvePath(basePath, cfg.Credentials.Path)
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// FindProjectRoot walks up from startDir to the first directory holding
// a project marker. Without one it returns startDir made absolute.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		startDir = wd
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	for dir := absDir; ; {
		for _, marker := range projectMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// FindDaemonInfo reads daemon.json from the project root above startDir.
func FindDaemonInfo(startDir string) (*DaemonInfo, error) {
	infoPath := DaemonInfoPath(FindProjectRoot(startDir))
	info, err := ReadDaemonInfo(infoPath)
	if err != nil {
		return nil, fmt.Errorf("daemon info not found (checked %s)", infoPath)
	}
	return info, nil
}

// WriteDaemonInfo writes info to path, creating the directory.
func WriteDaemonInfo(path string, info *DaemonInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon info: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write daemon info: %w", err)
	}
	return nil
}

// ReadDaemonInfo reads daemon connection info from path.
func ReadDaemonInfo(path string) (*DaemonInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daemon info: %w", err)
	}

	var info DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal daemon info: %w", err)
	}
	return &info, nil
}

// RemoveDaemonInfo removes daemon.json; a missing file is not an error.
func RemoveDaemonInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove daemon info: %w", err)
	}
	return nil
}

// DaemonInfoPath returns the daemon.json path under projectRoot.
func DaemonInfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.ProjectConfigDir, daemonInfoFile)
}
