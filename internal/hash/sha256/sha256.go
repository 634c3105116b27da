// Package sha256 names website snapshots by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

var _ callify.Hasher = Hasher{}

// Hasher implements callify.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() Hasher {
	return Hasher{}
}

// Hash returns the hex digest of data.
func (Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
