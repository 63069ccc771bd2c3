package account

import (
	"fmt"
	"os"
	"path/filepath"
)

// load populates s.accounts from s.path. A missing file is not an error;
// the store simply starts empty, matching a first run against a fresh
// Coordinator.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("account: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	accounts, err := unmarshalAccounts(data)
	if err != nil {
		return fmt.Errorf("account: load %s: %w", s.path, err)
	}
	s.accounts = accounts
	return nil
}

// persistLocked writes the full account set to s.path. Callers must hold
// s.mu for writing. The write goes to a temp file in the same directory
// first, then renames over s.path, so a crash mid-write leaves the
// previous file intact rather than a truncated one (spec.md §4.2: "writes
// the entire account set to a JSON file atomically on every mutation").
func (s *Store) persistLocked() error {
	data, err := marshalAccounts(s.accounts)
	if err != nil {
		return fmt.Errorf("account: marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("account: mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("account: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("account: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("account: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("account: rename %s to %s: %w", tmpPath, s.path, err)
	}
	return nil
}
