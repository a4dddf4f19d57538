// Package hasher computes content fingerprints used to deduplicate documents.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read buffer size used while hashing.
const BlockSize = 64 * 1024

// ErrRead is wrapped by every failure to read the hashed content.
var ErrRead = errors.New("hasher: read failed")

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader returns the hex SHA-256 of everything r yields.
// No partial hash is returned on error.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
