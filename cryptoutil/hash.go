package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const fileHashChunkSize = 4096

// EmailHash returns the lowercase-hex SHA-256 of a normalized email
// address — the Coordinator's primary key for an account (spec.md §3).
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// HashFile computes the lowercase-hex SHA-256 of the file at path, reading
// it in fileHashChunkSize-byte chunks the way directory.Cache streams its
// cached documents off disk.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: open %s: %w", path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader computes the lowercase-hex SHA-256 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, fileHashChunkSize)
	// The wrapper hides any io.WriterTo (such as *os.File's), which
	// CopyBuffer would otherwise use in place of buf.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); err != nil {
		return "", fmt.Errorf("cryptoutil: hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
