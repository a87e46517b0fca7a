package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink consumes events from the router.
type Sink interface {
	Start(ctx context.Context, events <-chan Event) error
	Stop() error
}

// Rotation bounds the size of the event log. Zero values disable the
// corresponding limit.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LogSink appends events as JSON lines to a size-rotated file.
type LogSink struct {
	path     string
	rotation Rotation
	logger   *slog.Logger

	mu      sync.Mutex
	writer  *lumberjack.Logger
	encoder *json.Encoder
	done    chan struct{}
}

// NewLogSink creates a LogSink writing to path.
func NewLogSink(path string, rotation Rotation, logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{
		path:     path,
		rotation: rotation,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start opens the log and consumes events until ctx is canceled or the
// channel is closed.
func (s *LogSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   s.path,
		MaxSize:    s.rotation.MaxSizeMB,
		MaxBackups: s.rotation.MaxBackups,
		MaxAge:     s.rotation.MaxAgeDays,
		Compress:   s.rotation.Compress,
	}

	s.mu.Lock()
	s.writer = w
	s.encoder = json.NewEncoder(w)
	s.mu.Unlock()

	go s.run(ctx, events)
	return nil
}

func (s *LogSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.write(event)
		}
	}
}

func (s *LogSink) write(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(event); err != nil {
		s.logger.Error("failed to write event", "type", event.Type(), "error", err)
	}
}

// Stop waits for the consumer goroutine and closes the file. Stop must
// only be called after Start.
func (s *LogSink) Stop() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	s.encoder = nil
	return err
}

// Path returns the log file path.
func (s *LogSink) Path() string {
	return s.path
}
