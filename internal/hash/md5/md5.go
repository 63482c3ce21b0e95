// Package md5 provides MD5 content digests, the default media identity.
// MD5 is used for deduplication keys only, never for integrity or security.
package md5

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
)

// Hasher implements collector.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the 32-character hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
