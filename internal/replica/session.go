package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jason-s-yu/tablehost/internal/models"
)

// SessionStore keeps the reconnection hint for each seat a guest has taken.
type SessionStore interface {
	Load(ctx context.Context, key string) (models.Session, bool, error)
	Save(ctx context.Context, key string, s models.Session) error
}

// SessionKey names the hint for one guest at one host. Guests sharing a store
// must not share a key or they would claim each other's seats.
func SessionKey(hostURL, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "guest"
	}
	return hostURL + "|" + name
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]models.Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]models.Session)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, v models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return nil
}

// FileStore keeps hints in a JSON file so they survive a guest restart
// without Redis. The whole file is rewritten on each save.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath is sessions.json under the user's config directory.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "tablehost", "sessions.json"), nil
}

func (s *FileStore) Load(_ context.Context, key string) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return models.Session{}, false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

func (s *FileStore) Save(_ context.Context, key string, v models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	all[key] = v
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace sessions: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]models.Session, error) {
	all := make(map[string]models.Session)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode sessions %s: %w", s.path, err)
	}
	return all, nil
}
