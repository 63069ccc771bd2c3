package session

import (
	"encoding/json"
	"fmt"
	"os"
)

// LocalAccounts is the on-disk record of emails this machine has
// registered or logged into (spec.md §6's client.json: an array of
// locally registered email strings).
type LocalAccounts struct {
	path   string
	Emails []string
}

// LoadLocalAccounts reads path, or returns an empty LocalAccounts if it
// does not yet exist.
func LoadLocalAccounts(path string) (*LocalAccounts, error) {
	la := &LocalAccounts{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return la, nil
		}
		return nil, fmt.Errorf("session: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return la, nil
	}
	if err := json.Unmarshal(data, &la.Emails); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", path, err)
	}
	return la, nil
}

// Add appends email if not already present and persists the file.
func (la *LocalAccounts) Add(email string) error {
	for _, e := range la.Emails {
		if e == email {
			return nil
		}
	}
	la.Emails = append(la.Emails, email)
	return la.save()
}

func (la *LocalAccounts) save() error {
	data, err := json.Marshal(la.Emails)
	if err != nil {
		return fmt.Errorf("session: marshal local accounts: %w", err)
	}
	if err := os.WriteFile(la.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", la.path, err)
	}
	return nil
}
