// Package kvstore provides the small key-value stores linkwatch persists
// documents into: a JSON file for the default install and BadgerDB for
// hosts that prefer an embedded database.
package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a byte-oriented key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open returns the store named by backend ("file" or "badger") rooted at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path, logger), nil
	case "badger":
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		cfg.Logger = logger
		s, err := OpenBadger(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}
