package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// fileStore persists the session as a single JSON record. Earlier client
// builds wrote two separate entries (a JSON "user" file and a bare "token"
// file); loadLegacy reads that layout once so restore can convert it.
type fileStore struct {
	path string
}

func (s fileStore) legacyUserPath() string {
	return filepath.Join(filepath.Dir(s.path), "user")
}

func (s fileStore) legacyTokenPath() string {
	return filepath.Join(filepath.Dir(s.path), "token")
}

func (s fileStore) load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s fileStore) save(sess Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s fileStore) clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.removeLegacy()
	return nil
}

// loadLegacy reads the split-record layout. Both entries must be present
// and well formed; anything else counts as absent.
func (s fileStore) loadLegacy() (Session, bool) {
	userData, err := os.ReadFile(s.legacyUserPath())
	if err != nil {
		return Session{}, false
	}
	tokenData, err := os.ReadFile(s.legacyTokenPath())
	if err != nil {
		return Session{}, false
	}

	var user User
	if err := json.Unmarshal(userData, &user); err != nil {
		return Session{}, false
	}
	token := strings.TrimSpace(string(tokenData))
	if token == "" {
		return Session{}, false
	}
	return Session{Token: token, User: &user}, true
}

func (s fileStore) removeLegacy() {
	_ = os.Remove(s.legacyUserPath())
	_ = os.Remove(s.legacyTokenPath())
}
