package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInsecureFile is returned when the credentials file is readable by
// group or other users.
var ErrInsecureFile = errors.New("credentials: file is readable by other users")

// fileNetwork is one entry of the YAML file.
type fileNetwork struct {
	SSID     string   `yaml:"ssid"`
	Security Security `yaml:"security"`
	Password string   `yaml:"password"`
	Priority int      `yaml:"priority"`
}

type fileDocument struct {
	Networks []fileNetwork `yaml:"networks"`
}

type savedNetwork struct {
	ssid     string
	priority int
	order    int
	auth     *Auth
}

// FileStore serves credentials from a YAML file:
//
//	networks:
//	  - ssid: Home
//	    security: wpa-psk
//	    password: hunter22
//	    priority: 10
//
// The file must not be readable by group or other. Reload swaps the whole
// set atomically; a failed reload keeps the previous set.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	networks map[string]*savedNetwork
}

// NewFileStore creates a store for path. Call Reload to read it.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:     path,
		logger:   logger,
		networks: make(map[string]*savedNetwork),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Reload reads the file. A missing file means no saved networks.
func (s *FileStore) Reload() error {
	networks, err := s.read()
	if err != nil {
		s.logger.Warn("credentials not reloaded", "path", s.path, "error", err)
		return err
	}

	s.mu.Lock()
	s.networks = networks
	s.mu.Unlock()

	s.logger.Info("credentials loaded", "path", s.path, "networks", len(networks))
	return nil
}

func (s *FileStore) read() (map[string]*savedNetwork, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*savedNetwork{}, nil
		}
		return nil, fmt.Errorf("credentials: stat %s: %w", s.path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %04o", ErrInsecureFile, s.path, info.Mode().Perm())
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", s.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("credentials: parse %s: %w", s.path, err)
	}

	networks := make(map[string]*savedNetwork, len(doc.Networks))
	for i, n := range doc.Networks {
		if n.SSID == "" {
			return nil, fmt.Errorf("credentials: network %d has no ssid", i)
		}
		if n.Security == "" {
			n.Security = SecurityWPAPSK
			if n.Password == "" {
				n.Security = SecurityOpen
			}
		}
		if !n.Security.Valid() {
			return nil, fmt.Errorf("credentials: network %q has unsupported security %q (want open or wpa-psk)", n.SSID, n.Security)
		}
		if n.Security == SecurityWPAPSK && n.Password == "" {
			return nil, fmt.Errorf("credentials: network %q needs a password", n.SSID)
		}
		if _, dup := networks[n.SSID]; dup {
			s.logger.Warn("duplicate network in credentials file, keeping the later one", "ssid", n.SSID)
		}
		networks[n.SSID] = &savedNetwork{
			ssid:     n.SSID,
			priority: n.Priority,
			order:    i,
			auth:     NewAuth(n.Security, n.Password),
		}
	}
	return networks, nil
}

// LookupCredential returns the saved credential for ssid.
func (s *FileStore) LookupCredential(ssid string) (*Auth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.networks[ssid]
	if !ok {
		return nil, false
	}
	return n.auth, true
}

// Known lists saved ssids, highest priority first, then file order.
func (s *FileStore) Known() []string {
	s.mu.RLock()
	list := make([]*savedNetwork, 0, len(s.networks))
	for _, n := range s.networks {
		list = append(list, n)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].order < list[j].order
	})

	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ssid
	}
	return out
}

// Len returns the number of saved networks.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.networks)
}
