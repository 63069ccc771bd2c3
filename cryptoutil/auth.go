// Package cryptoutil implements SecureDrop's credential hashing, profile
// envelope encryption, and file hashing primitives (spec.md §4.1).
package cryptoutil

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen        = 32
	pbkdf2Iters    = 10000
	derivedKeyLen  = 64
)

// Authentication holds the salted PBKDF2-HMAC-SHA512 credential material
// for one account, exactly as persisted in spec.md §3's account record.
type Authentication struct {
	Salt []byte
	Key  []byte
}

// NewAuthentication derives fresh authentication material for password,
// generating a random salt.
func NewAuthentication(password string) (Authentication, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Authentication{}, fmt.Errorf("cryptoutil: generate salt: %w", err)
	}
	return Authentication{
		Salt: salt,
		Key:  deriveKey(password, salt),
	}, nil
}

// Verify reports whether password matches this Authentication's key, using
// a constant-time comparison to avoid leaking timing information about a
// partial match.
func (a Authentication) Verify(password string) bool {
	candidate := deriveKey(password, a.Salt)
	return subtle.ConstantTimeCompare(candidate, a.Key) == 1
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iters, derivedKeyLen, sha512.New)
}
