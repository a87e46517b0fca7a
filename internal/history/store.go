package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/npratt/linkwatch/internal/kvstore"
)

// Default values matching the reference behaviour.
const (
	DefaultKey          = "ConnectionHistory"
	DefaultCapacity     = 100
	DefaultDisplayLimit = 20
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Key          string
	Capacity     int
	DisplayLimit int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Store is the connection history. All methods are safe for concurrent use;
// one mutex covers read-modify-persist.
type Store struct {
	kv           kvstore.Store
	key          string
	capacity     int
	displayLimit int
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	entries []Entry // newest first
}

// New creates a Store backed by kv and loads any persisted history. Load
// failures are logged and yield an empty history.
func New(kv kvstore.Store, opts Options) *Store {
	s := &Store{
		kv:           kv,
		key:          opts.Key,
		capacity:     opts.Capacity,
		displayLimit: opts.DisplayLimit,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.displayLimit <= 0 {
		s.displayLimit = DefaultDisplayLimit
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.load()
	return s
}

// RecordConnection inserts a new open entry for ssid at the front.
func (s *Store) RecordConnection(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		SSID:        ssid,
		ConnectedAt: s.now(),
		Success:     true,
	}
	s.prependLocked(e)
	s.persistLocked()
}

// RecordDisconnection closes the most recent open entry for ssid. It is a
// no-op when there is none.
func (s *Store) RecordDisconnection(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.openIndexLocked(ssid)
	if i < 0 {
		s.logger.Debug("no open history entry to close", "ssid", ssid)
		return
	}

	closed := s.entries[i]
	at := s.now()
	closed.DisconnectedAt = &at
	s.entries[i] = closed
	s.persistLocked()
}

// RecordFailure inserts a closed, unsuccessful entry for ssid.
func (s *Store) RecordFailure(ssid, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	disconnectedAt := at
	e := Entry{
		SSID:           ssid,
		ConnectedAt:    at,
		DisconnectedAt: &disconnectedAt,
		Success:        false,
		FailureReason:  &reason,
	}
	s.prependLocked(e)
	s.persistLocked()
}

// History returns up to limit entries, newest first. limit <= 0 selects the
// display limit.
func (s *Store) History(limit int) []Entry {
	if limit <= 0 {
		limit = s.displayLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]Entry, limit)
	for i, e := range s.entries[:limit] {
		out[i] = e.clone()
	}
	return out
}

// LastSuccessfulConnection returns the most recent successful entry for ssid.
func (s *Store) LastSuccessfulConnection(ssid string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.SSID == ssid && e.Success {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// LastSuccessful returns the most recent successful entry for any ssid.
func (s *Store) LastSuccessful() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Success {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear empties the history and removes the persisted key.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if err := s.kv.Delete(s.key); err != nil {
		s.logger.Error("failed to delete history", "key", s.key, "error", err)
	}
}

func (s *Store) openIndexLocked(ssid string) int {
	for i, e := range s.entries {
		if e.SSID == ssid && e.IsOpen() {
			return i
		}
	}
	return -1
}

func (s *Store) prependLocked(e Entry) {
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[:s.capacity]
	}
}

// persistLocked writes the whole log. Failures are logged; the in-memory
// entries stay authoritative.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.logger.Error("failed to encode history", "error", err)
		return
	}
	if err := s.kv.Set(s.key, data); err != nil {
		s.logger.Error("failed to persist history", "key", s.key, "error", err)
	}
}

func (s *Store) load() {
	data, err := s.kv.Get(s.key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("failed to read history, starting empty", "key", s.key, "error", err)
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("failed to decode history, starting empty", "key", s.key, "error", err)
		return
	}
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}
	s.entries = entries
}
