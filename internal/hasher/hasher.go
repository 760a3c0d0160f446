// Package hasher computes stable content fingerprints for input files.
//
// The fingerprint is the hex-encoded SHA-256 of the file bytes, computed with
// a streaming read so arbitrarily large uploads never need to fit in memory.
// Identical byte content always yields the identical fingerprint; the
// pipeline uses it as the idempotency key.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentHasher produces fingerprints from files or streams.
type ContentHasher struct{}

// New creates a ContentHasher.
func New() *ContentHasher {
	return &ContentHasher{}
}

// HashFile streams the file at path through SHA-256 and returns the
// hex-encoded fingerprint.
func (h *ContentHasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	return h.HashReader(f)
}

// HashReader streams r through SHA-256 and returns the hex-encoded
// fingerprint.
func (h *ContentHasher) HashReader(r io.Reader) (string, error) {
	sum := sha256.New()
	if _, err := io.Copy(sum, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
