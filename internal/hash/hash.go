// Package hash provides content digests.
//
// Plans are fingerprinted with SHA-256 so two runs over the same inputs can be
// compared byte for byte, and module catalogs record a digest per template
// asset.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher computes hex encoded content digests.
type Hasher interface {
	// HashBytes computes the digest of data.
	HashBytes(data []byte) string

	// HashReader computes the digest of everything read from r.
	HashReader(r io.Reader) (string, error)

	// HashFile computes the digest of the file at the given path.
	HashFile(path string) (string, error)
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashBytes returns the hex encoded SHA-256 of data.
func (h *SHA256Hasher) HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA-256.
func (h *SHA256Hasher) HashReader(r io.Reader) (string, error) {
	digest := sha256.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashFile digests a template or blueprint file without loading it whole.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return h.HashReader(file)
}
