package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/miravoice/mira/internal/config"
)

// Store persists the single active profile and its avatar image.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("persona: failed to create directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewDefaultStore creates a store under the data directory.
func NewDefaultStore() (*Store, error) {
	return NewStore(config.DataDir())
}

func (s *Store) profilePath() string { return filepath.Join(s.dir, "persona.json") }

// AvatarPath is where the rendered avatar lives.
func (s *Store) AvatarPath() string { return filepath.Join(s.dir, "avatar.png") }

// Load reads the stored profile. Returns (nil, nil) when none exists
// yet, so callers can decide to generate one.
func (s *Store) Load() (*Profile, error) {
	data, err := os.ReadFile(s.profilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persona: failed to read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona: failed to parse profile: %w", err)
	}
	return &p, nil
}

// Save writes the profile to disk atomically.
func (s *Store) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("persona: failed to marshal profile: %w", err)
	}

	tmpPath := s.profilePath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("persona: failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.profilePath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persona: failed to rename temp file: %w", err)
	}
	return nil
}

// SaveAvatar writes the avatar image and records its path in the
// profile.
func (s *Store) SaveAvatar(p *Profile, image []byte) error {
	if err := os.WriteFile(s.AvatarPath(), image, 0644); err != nil {
		return fmt.Errorf("persona: failed to write avatar: %w", err)
	}
	p.AvatarPath = s.AvatarPath()
	return s.Save(p)
}
