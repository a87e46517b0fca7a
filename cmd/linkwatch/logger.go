package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/npratt/linkwatch/internal/config"
)

// debugLogName is the daemon's own log, next to the event log.
const debugLogName = "linkwatch-debug.log"

// FileLogger is a slog logger writing to a rotated file.
type FileLogger struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file.
func (r *FileLogger) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupFileLogger creates a JSON logger in logDir rotated by lumberjack.
// A detached daemon has no stderr, so this is where its logs go.
func SetupFileLogger(logDir string, level slog.Leveler, rotation config.LogRotationConfig) *FileLogger {
	path := filepath.Join(logDir, debugLogName)
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}
	return &FileLogger{
		Logger:   newLogger(w, level),
		LogFile:  w,
		FilePath: path,
	}
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
