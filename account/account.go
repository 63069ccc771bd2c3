// Package account implements the Coordinator's user registry: salted-hash
// credentials and envelope-encrypted profile fields, persisted as JSON
// (spec.md §3, §4.2).
package account

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aokellermann/securedrop-go/cryptoutil"
)

// Account is one user record. Only EmailHash, Auth, EncName, and
// EncContacts are ever persisted; Name, Contacts, and PlaintextEmail live
// only in memory, for the lifetime of an authenticated session that
// supplied the plaintext email needed to decrypt EncName/EncContacts
// (spec.md §3's envelope-key invariant) — and are scrubbed by the
// Coordinator on session teardown.
type Account struct {
	EmailHash   string
	Auth        cryptoutil.Authentication
	EncName     string
	EncContacts string

	PlaintextEmail string
	Name           string
	Contacts       map[string]string
}

// wireAccount is the on-disk shape of Account, matching spec.md §6's
// persisted-state layout exactly: the "email" field holds the email hash,
// never the plaintext address.
type wireAccount struct {
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Contacts    string         `json:"contacts"`
	Auth        wireAuth       `json:"auth"`
}

type wireAuth struct {
	Salt string `json:"salt"`
	Key  string `json:"key"`
}

func (a Account) toWire() wireAccount {
	return wireAccount{
		Email:    a.EmailHash,
		Name:     a.EncName,
		Contacts: a.EncContacts,
		Auth: wireAuth{
			Salt: base64.StdEncoding.EncodeToString(a.Auth.Salt),
			Key:  base64.StdEncoding.EncodeToString(a.Auth.Key),
		},
	}
}

func (w wireAccount) toAccount() (Account, error) {
	salt, err := base64.StdEncoding.DecodeString(w.Auth.Salt)
	if err != nil {
		return Account{}, fmt.Errorf("account: decode salt: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(w.Auth.Key)
	if err != nil {
		return Account{}, fmt.Errorf("account: decode key: %w", err)
	}
	return Account{
		EmailHash:   w.Email,
		EncName:     w.Name,
		EncContacts: w.Contacts,
		Auth:        cryptoutil.Authentication{Salt: salt, Key: key},
	}, nil
}

// marshalAccounts renders the full account set in the persisted JSON shape
// described by spec.md §6: {email_hash → account}.
func marshalAccounts(accounts map[string]*Account) ([]byte, error) {
	wire := make(map[string]wireAccount, len(accounts))
	for hash, a := range accounts {
		wire[hash] = a.toWire()
	}
	return json.Marshal(wire)
}

// unmarshalAccounts parses the persisted JSON shape back into Account
// values (EncName/EncContacts only — Name/Contacts/PlaintextEmail stay
// zero until a successful Authenticate).
func unmarshalAccounts(data []byte) (map[string]*Account, error) {
	var wire map[string]wireAccount
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("account: unmarshal accounts: %w", err)
	}
	accounts := make(map[string]*Account, len(wire))
	for hash, w := range wire {
		a, err := w.toAccount()
		if err != nil {
			return nil, fmt.Errorf("account: account %s: %w", hash, err)
		}
		accounts[hash] = &a
	}
	return accounts, nil
}
