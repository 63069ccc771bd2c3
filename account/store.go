package account

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"sync"

	"github.com/aokellermann/securedrop-go/cryptoutil"
)

// authInvalidMsg is returned for both an unknown email and a wrong
// password, so a caller cannot tell which one failed.
const authInvalidMsg = "Email and Password Combination Invalid."

// Store is the Coordinator's in-memory user registry, persisted to a JSON
// file on every mutation (spec.md §4.2). It is grounded on directory.Cache's
// single-mutex, persist-on-mutation shape.
type Store struct {
	mu       sync.RWMutex
	path     string
	accounts map[string]*Account
}

// NewStore loads accounts from path if it exists, or starts empty.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, accounts: make(map[string]*Account)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Register creates a new account and, like Authenticate, holds its
// plaintext email, name, and (empty) contacts in memory for the
// registering session. Returns "" on success, or a user-facing error
// message (spec.md §4.2).
func (s *Store) Register(name, email, password string) string {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "Invalid email address."
	}
	hash := cryptoutil.EmailHash(normalized)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[hash]; exists {
		return "An account with that email already exists."
	}

	auth, err := cryptoutil.NewAuthentication(password)
	if err != nil {
		return "Internal error generating credentials."
	}
	key := cryptoutil.EnvelopeKey(normalized)
	encName, err := cryptoutil.Encrypt(key, []byte(name))
	if err != nil {
		return "Internal error encrypting profile."
	}
	encContacts, err := cryptoutil.Encrypt(key, []byte("{}"))
	if err != nil {
		return "Internal error encrypting profile."
	}

	s.accounts[hash] = &Account{
		EmailHash:   hash,
		Auth:        auth,
		EncName:     encName,
		EncContacts: encContacts,

		// The registering session is authenticated, exactly as after a
		// successful Authenticate.
		PlaintextEmail: normalized,
		Name:           name,
		Contacts:       make(map[string]string),
	}

	if err := s.persistLocked(); err != nil {
		delete(s.accounts, hash)
		return "Internal error persisting account."
	}
	return ""
}

// Authenticate verifies credentials and, on success, decrypts the
// account's name and contacts into memory for the lifetime of the
// session. Returns "" on success.
func (s *Store) Authenticate(email, password string) string {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return authInvalidMsg
	}
	hash := cryptoutil.EmailHash(normalized)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[hash]
	if !ok || !a.Auth.Verify(password) {
		return authInvalidMsg
	}

	key := cryptoutil.EnvelopeKey(normalized)
	name, err := cryptoutil.Decrypt(key, a.EncName)
	if err != nil {
		return authInvalidMsg
	}
	contactsJSON, err := cryptoutil.Decrypt(key, a.EncContacts)
	if err != nil {
		return authInvalidMsg
	}
	var contacts map[string]string
	if err := json.Unmarshal(contactsJSON, &contacts); err != nil {
		return authInvalidMsg
	}

	a.PlaintextEmail = normalized
	a.Name = string(name)
	a.Contacts = contacts
	return ""
}

// Logout scrubs the plaintext email and decrypted profile fields held for
// an authenticated session (spec.md §9's envelope-key invariant).
func (s *Store) Logout(email string) {
	hash := cryptoutil.EmailHash(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[hash]
	if !ok {
		return
	}
	a.PlaintextEmail = ""
	a.Name = ""
	a.Contacts = nil
}

// AddContact inserts contactEmail/contactName into ownerEmail's contact
// map, re-encrypts, and persists.
func (s *Store) AddContact(ownerEmail, contactName, contactEmail string) string {
	normalizedContact, err := normalizeEmail(contactEmail)
	if err != nil || contactName == "" {
		return "Invalid contact."
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.accounts[cryptoutil.EmailHash(ownerEmail)]
	if !ok || owner.PlaintextEmail == "" {
		return "Not authenticated."
	}

	if owner.Contacts == nil {
		owner.Contacts = make(map[string]string)
	}
	owner.Contacts[normalizedContact] = contactName

	contactsJSON, err := json.Marshal(owner.Contacts)
	if err != nil {
		return "Internal error encrypting contacts."
	}
	key := cryptoutil.EnvelopeKey(owner.PlaintextEmail)
	encContacts, err := cryptoutil.Encrypt(key, contactsJSON)
	if err != nil {
		return "Internal error encrypting contacts."
	}
	owner.EncContacts = encContacts

	if err := s.persistLocked(); err != nil {
		return "Internal error persisting account."
	}
	return ""
}

// ContactsContains reports whether ownerEmail has added otherEmail as a
// contact.
func (s *Store) ContactsContains(ownerEmail, otherEmail string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.accounts[cryptoutil.EmailHash(ownerEmail)]
	if !ok {
		return false
	}
	_, present := owner.Contacts[otherEmail]
	return present
}

// GetContacts returns a copy of ownerEmail's decrypted contacts map
// (empty if the owner is unknown or unauthenticated).
func (s *Store) GetContacts(ownerEmail string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.accounts[cryptoutil.EmailHash(ownerEmail)]
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(owner.Contacts))
	for email, name := range owner.Contacts {
		out[email] = name
	}
	return out
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("account: parse email: %w", err)
	}
	return addr.Address, nil
}
