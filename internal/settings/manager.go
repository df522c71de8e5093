package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultDirName = ".gitlabuploader"
	fileName       = "config.json"
)

// Settings are the values remembered between sessions. The GitLab URL and
// the upload directory are deliberately not stored.
type Settings struct {
	Token     string `json:"token" yaml:"token"`
	ProjectID string `json:"project_id" yaml:"project_id"`
}

// MaskedToken keeps the first four characters of the token
func (s Settings) MaskedToken() string {
	if s.Token == "" {
		return ""
	}
	if len(s.Token) <= 4 {
		return strings.Repeat("*", len(s.Token))
	}
	return s.Token[:4] + strings.Repeat("*", len(s.Token)-4)
}

// DefaultDir returns ~/.gitlabuploader
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// Manager reads and writes the settings file
type Manager struct {
	dir string
	mu  sync.RWMutex
}

// NewManager creates a settings manager rooted at dir, or DefaultDir if dir is empty
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the configuration directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the settings file path
func (m *Manager) Path() string {
	return filepath.Join(m.dir, fileName)
}

// Load returns the stored settings, or empty settings if none were saved
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Settings
	data, err := os.ReadFile(m.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", m.Path(), err)
	}
	return s, nil
}

// Save writes s, creating the directory if needed. The file holds a
// token, so it is only readable by the owner.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(m.Path(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Clear removes the settings file. Clearing twice is not an error.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove settings: %w", err)
	}
	return nil
}
