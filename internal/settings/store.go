package settings

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Settings holds operator-editable values persisted between runs:
// device credentials, the dry-run toggle and the panel's own auth material.
type Settings struct {
	DeviceIP      string `json:"device_ip"`
	Token         string `json:"token"`
	Secret        string `json:"secret"`
	DryRun        bool   `json:"dry_run"`
	AppName       string `json:"app_name,omitempty"`
	PasswordHash  string `json:"password_hash,omitempty"`
	SessionSecret string `json:"session_secret,omitempty"`
}

// Store persists settings as a single JSON file, rewritten on every update.
type Store struct {
	path    string
	mu      sync.RWMutex
	current Settings
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the settings file in the per-user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "raybox-panel", "settings.json"), nil
}

// Load reads persisted settings, then fills still-empty credential fields
// from RAYBOX_IP, RAYBOX_TOKEN and RAYBOX_SECRET. A missing file starts
// empty; a corrupt file is logged and starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.current = Settings{DryRun: true}
	case err != nil:
		return fmt.Errorf("failed to read settings: %w", err)
	default:
		var loaded Settings
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", s.path).Msg("settings file is corrupt, starting empty")
			loaded = Settings{DryRun: true}
		}
		s.current = loaded
	}

	if s.current.DeviceIP == "" {
		s.current.DeviceIP = os.Getenv("RAYBOX_IP")
	}
	if s.current.Token == "" {
		s.current.Token = os.Getenv("RAYBOX_TOKEN")
	}
	if s.current.Secret == "" {
		s.current.Secret = os.Getenv("RAYBOX_SECRET")
	}
	return nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies fn under the lock and persists the result synchronously.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	return s.save()
}

// SessionSecret returns the JWT signing key, generating and persisting one
// on first use.
func (s *Store) SessionSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.SessionSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		s.current.SessionSecret = hex.EncodeToString(key)
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return hex.DecodeString(s.current.SessionSecret)
}

// save writes the full settings file. Caller must hold the write lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
