package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the session pair in a single JSON file so the two keys
// can only ever be written together. Writes go through a temp file and
// rename, which keeps the pair intact across a crash mid-write.
type FileStore struct {
	path string
}

type sessionFile struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// NewFileStore places the session file under dir, creating it as needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".edu-portal")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, "session.json")}, nil
}

// Load reads the stored pair. A missing file is not an error; it reports
// an absent session.
func (s *FileStore) Load() (string, []byte, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("read session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", nil, fmt.Errorf("parse session file: %w", err)
	}
	return f.Token, []byte(f.User), nil
}

// Save writes the pair atomically via temp file and rename.
func (s *FileStore) Save(token string, user []byte) error {
	payload, err := json.Marshal(sessionFile{Token: token, User: json.RawMessage(user)})
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit session file: %w", err)
	}
	return nil
}

// Clear removes the session file, leaving both keys absent.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Path exposes the session file location (useful in CLI output).
func (s *FileStore) Path() string {
	return s.path
}
