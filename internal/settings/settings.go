// Package settings is the persistence collaborator for user-facing audio
// state. The engine only ever sees the Store interface; FileStore is the
// JSON-on-afero implementation used by the CLI and tests.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Keys consumed by the audio engine.
const (
	KeyVolume       = "sound-volume"
	KeyEnabled      = "sound-enabled"
	KeyClickEnabled = "click-sound-enabled"
)

// Store is a typed key-value accessor. Getters take the caller's default for
// missing keys; setters persist immediately.
type Store interface {
	Int(key string, def int) int
	Bool(key string, def bool) bool
	SetInt(key string, value int) error
	SetBool(key string, value bool) error
}

// FileStore keeps settings in one JSON document.
type FileStore struct {
	mu     sync.Mutex
	fsys   afero.Fs
	path   string
	values map[string]any
}

// NewFileStore loads the settings document at path, starting empty when the
// file does not exist yet.
func NewFileStore(fsys afero.Fs, path string) (*FileStore, error) {
	s := &FileStore{
		fsys:   fsys,
		path:   path,
		values: make(map[string]any),
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		slog.Debug("no settings file, starting empty", "path", path, "error", err)
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	slog.Debug("settings loaded", "path", path, "keys", len(s.values))
	return s, nil
}

func (s *FileStore) Int(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := s.values[key].(type) {
	case float64: // encoding/json decodes numbers as float64
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func (s *FileStore) Bool(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

func (s *FileStore) SetInt(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

func (s *FileStore) SetBool(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

// save is called with the lock held.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.fsys.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := afero.WriteFile(s.fsys, s.path, data, 0644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	slog.Debug("settings saved", "path", s.path)
	return nil
}

// Memory is an in-memory Store for tests and callers without persistence.
type Memory struct {
	mu    sync.Mutex
	ints  map[string]int
	bools map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		ints:  make(map[string]int),
		bools: make(map[string]bool),
	}
}

func (m *Memory) Int(key string, def int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.ints[key]; ok {
		return v
	}
	return def
}

func (m *Memory) Bool(key string, def bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.bools[key]; ok {
		return v
	}
	return def
}

func (m *Memory) SetInt(key string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key] = value
	return nil
}

func (m *Memory) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bools[key] = value
	return nil
}
