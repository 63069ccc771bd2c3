package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const envelopeKeyLen = 32

// EnvelopeKey derives the AES-256 key used to encrypt a user's profile
// fields, from the plaintext email supplied at login (spec.md §3, §4.1).
// It reads 32 bytes from a SHAKE-256 sponge seeded with the email — the
// same sub-package (golang.org/x/crypto/sha3) the teacher already uses for
// running relay digests in onion/rendezvous.go, applied here to a
// fixed-output XOF read instead of an incremental hash.Hash.
func EnvelopeKey(email string) [envelopeKeyLen]byte {
	var key [envelopeKeyLen]byte
	h := sha3.NewShake256()
	_, _ = h.Write([]byte(email))
	_, _ = h.Read(key[:])
	return key
}

// Encrypt AES-256-CBC-encrypts plaintext under key, with a fresh random IV
// prepended to the ciphertext, PKCS7-padded, and the whole blob
// base64-encoded.
func Encrypt(key [envelopeKeyLen]byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("cryptoutil: generate iv: %w", err)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	blob := append(iv, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key [envelopeKeyLen]byte, encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode envelope: %w", err)
	}
	if len(blob) < aes.BlockSize || len(blob)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptoutil: envelope has invalid length %d", len(blob))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	iv, ciphertext := blob[:aes.BlockSize], blob[aes.BlockSize:]
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("cryptoutil: empty envelope ciphertext")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cryptoutil: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("cryptoutil: invalid PKCS7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("cryptoutil: invalid PKCS7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
