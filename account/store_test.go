package account

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "server.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestStore(t)

	if msg := s.Register("Alice", "alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("register: %q", msg)
	}
	if msg := s.Authenticate("alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("authenticate: %q", msg)
	}
	if msg := s.Authenticate("alice@example.com", "password_v13"); msg != authInvalidMsg {
		t.Fatalf("expected generic auth failure, got %q", msg)
	}
	if msg := s.Authenticate("nobody@example.com", "password_v12"); msg != authInvalidMsg {
		t.Fatalf("expected generic auth failure for unknown user, got %q", msg)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	if msg := s.Register("Alice", "alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("first register: %q", msg)
	}
	if msg := s.Register("Alice2", "alice@example.com", "password_v34"); msg == "" {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestMutualContacts(t *testing.T) {
	s := newTestStore(t)

	if msg := s.Register("Alice", "alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("register alice: %q", msg)
	}
	if msg := s.Register("Bob", "bob@example.com", "password_v34"); msg != "" {
		t.Fatalf("register bob: %q", msg)
	}
	if msg := s.Authenticate("alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("auth alice: %q", msg)
	}
	if msg := s.Authenticate("bob@example.com", "password_v34"); msg != "" {
		t.Fatalf("auth bob: %q", msg)
	}

	if msg := s.AddContact("alice@example.com", "Bob", "bob@example.com"); msg != "" {
		t.Fatalf("add contact: %q", msg)
	}
	if !s.ContactsContains("alice@example.com", "bob@example.com") {
		t.Fatal("expected alice to have bob as a contact")
	}
	if s.ContactsContains("bob@example.com", "alice@example.com") {
		t.Fatal("contact relation should not yet be mutual")
	}

	if msg := s.AddContact("bob@example.com", "Alice", "alice@example.com"); msg != "" {
		t.Fatalf("add contact reverse: %q", msg)
	}
	if !s.ContactsContains("bob@example.com", "alice@example.com") {
		t.Fatal("expected bob to have alice as a contact")
	}
}

func TestAddContactIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.Register("Alice", "alice@example.com", "password_v12")
	s.Authenticate("alice@example.com", "password_v12")

	s.AddContact("alice@example.com", "Bob", "bob@example.com")
	s.AddContact("alice@example.com", "Bob", "bob@example.com")

	contacts := s.GetContacts("alice@example.com")
	if len(contacts) != 1 || contacts["bob@example.com"] != "Bob" {
		t.Fatalf("expected single idempotent contact entry, got %v", contacts)
	}
}

func TestLogoutScrubsProfile(t *testing.T) {
	s := newTestStore(t)
	s.Register("Alice", "alice@example.com", "password_v12")
	s.Authenticate("alice@example.com", "password_v12")
	s.AddContact("alice@example.com", "Bob", "bob@example.com")

	s.Logout("alice@example.com")

	if contacts := s.GetContacts("alice@example.com"); len(contacts) != 0 {
		t.Fatalf("expected contacts scrubbed after logout, got %v", contacts)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if msg := s1.Register("Alice", "alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("register: %q", msg)
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if msg := s2.Authenticate("alice@example.com", "password_v12"); msg != "" {
		t.Fatalf("authenticate after reload: %q", msg)
	}
}
