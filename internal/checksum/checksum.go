// Package checksum provides the SHA-256 digests used for document versions
// and todo identities.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Of returns the hex-encoded SHA-256 digest of parts joined by NUL bytes,
// so ("ab", "c") and ("a", "bc") hash differently.
func Of(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
