package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datallboy/resample/internal/domain"
)

// FileName is the settings file inside the app data directory.
const FileName = "settings.json"

// FileStore persists settings as a JSON document.
//
// The raw document is stored exactly as received so that fields this
// version does not know about survive a load/save cycle.
type FileStore struct {
	mu       sync.Mutex
	path     string
	defaults Settings
}

func NewFileStore(appDataDir string, defaults Settings) *FileStore {
	return &FileStore{
		path:     filepath.Join(appDataDir, FileName),
		defaults: defaults,
	}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored document, or the defaults when nothing has been saved.
func (s *FileStore) Load() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return json.Marshal(s.defaults)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return json.RawMessage(data), nil
}

// Save validates raw as a JSON object and replaces the stored document.
func (s *FileStore) Save(raw json.RawMessage) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	// Write to a sibling temp file then rename so a crash never leaves a half-written file
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LoadTyped decodes the stored document over the defaults, so missing keys
// keep their default values.
func (s *FileStore) LoadTyped() (Settings, error) {
	raw, err := s.Load()
	if err != nil {
		return Settings{}, err
	}

	out := s.defaults
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	return out, nil
}

// SaveTyped encodes and saves a typed record.
func (s *FileStore) SaveTyped(v Settings) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.Save(raw)
}
