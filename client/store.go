package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IdentityStore persists at most one locally synthesized identity across
// process restarts. Implementations must treat a missing record as
// (nil, nil), not as an error.
type IdentityStore interface {
	Load() (*Identity, error)
	Save(Identity) error
	Clear() error
}

// storedIdentity is the on-disk JSON shape. It matches the header payload so
// a persisted record is shaped exactly like a production principal.
type storedIdentity struct {
	UserID           string  `json:"userId"`
	UserDetails      string  `json:"userDetails"`
	IdentityProvider string  `json:"identityProvider"`
	Claims           []Claim `json:"claims"`
}

// FileStore keeps the synthesized identity in a single JSON file, the local
// equivalent of a browser's key-value storage slot.
type FileStore struct {
	path string
}

// NewFileStore creates a store rooted at path. The parent directory is
// created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStorePath places the identity file under the user config directory.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "salesd", "test-identity.json"), nil
}

func (s *FileStore) Load() (*Identity, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read identity: %w", err)
	}
	var rec storedIdentity
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}
	if rec.UserID == "" {
		return nil, fmt.Errorf("parse identity: empty userId")
	}
	return &Identity{
		UserID:      rec.UserID,
		DisplayName: rec.UserDetails,
		Provider:    rec.IdentityProvider,
		Claims:      rec.Claims,
	}, nil
}

func (s *FileStore) Save(id Identity) error {
	rec := storedIdentity{
		UserID:           id.UserID,
		UserDetails:      id.DisplayName,
		IdentityProvider: id.Provider,
		Claims:           id.Claims,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove identity: %w", err)
	}
	return nil
}
