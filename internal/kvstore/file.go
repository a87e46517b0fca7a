package kvstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CurrentFileVersion is the current file format version.
// Increment this when making incompatible changes to fileDocument.
const CurrentFileVersion = 1

// fileDocument is the on-disk layout of a FileStore. Values must be JSON so
// the file stays readable by hand.
type fileDocument struct {
	Version   int                        `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Keys      map[string]json.RawMessage `json:"keys"`
}

// FileStore keeps every key in one JSON file, rewritten atomically on each
// mutation. It is loaded lazily on first access.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	doc    *fileDocument
	loaded bool
}

// NewFileStore creates a FileStore backed by path. The file and its directory
// are created on first write.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key or ErrNotFound.
func (s *FileStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	v, ok := s.doc.Keys[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value under key and flushes the file. value must be valid JSON.
func (s *FileStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("kvstore: value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	v := make(json.RawMessage, len(value))
	copy(v, value)
	s.doc.Keys[key] = v
	return s.saveUnlocked()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.doc.Keys[key]; !ok {
		return nil
	}
	delete(s.doc.Keys, key)
	return s.saveUnlocked()
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}

// ensureLoaded reads the file once. A missing file is an empty store; a
// corrupted or incompatible file is backed up and replaced by an empty store.
// Must be called with s.mu held.
func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("kvstore: read %s: %w", s.path, err)
		}
		s.resetDoc()
		s.loaded = true
		return nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.backupAndReset("store file corrupted", slog.String("error", err.Error()))
		s.loaded = true
		return nil
	}

	if doc.Version != CurrentFileVersion {
		s.backupAndReset("incompatible store version",
			slog.Int("file_version", doc.Version),
			slog.Int("current_version", CurrentFileVersion))
		s.loaded = true
		return nil
	}

	if doc.Keys == nil {
		doc.Keys = make(map[string]json.RawMessage)
	}
	s.doc = &doc
	s.loaded = true
	return nil
}

func (s *FileStore) backupAndReset(msg string, attrs ...any) {
	attrs = append(attrs, slog.String("path", s.path))
	if backupErr := os.Rename(s.path, s.path+".backup"); backupErr != nil {
		attrs = append(attrs, slog.String("backup_error", backupErr.Error()))
		s.logger.Warn(msg+", failed to backup", attrs...)
	} else {
		s.logger.Warn(msg+", backed up and starting fresh", attrs...)
	}
	s.resetDoc()
}

func (s *FileStore) resetDoc() {
	s.doc = &fileDocument{
		Version: CurrentFileVersion,
		Keys:    make(map[string]json.RawMessage),
	}
}

// saveUnlocked writes the document with temp file + rename.
// Must be called with s.mu held.
func (s *FileStore) saveUnlocked() error {
	s.doc.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("kvstore: create directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("kvstore: write: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("kvstore: rename: %w", err)
	}
	return nil
}
