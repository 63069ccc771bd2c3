package account

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aokellermann/securedrop-go/cryptoutil"
)

func TestPersistedFileNeverContainsPlaintextEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")

	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if msg := s.Register("Alice", "alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("register: %q", msg)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "alice@example.com") {
		t.Fatal("persisted file must never contain the plaintext email")
	}

	var wire map[string]wireAccount
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatal(err)
	}
	hash := cryptoutil.EmailHash("alice@example.com")
	rec, ok := wire[hash]
	if !ok {
		t.Fatalf("expected a record keyed by %s", hash)
	}
	if rec.Email != hash {
		t.Fatalf("expected email field to equal the hash, got %q", rec.Email)
	}
}
