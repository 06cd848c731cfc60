package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex fingerprints downloaded artifacts and uploaded files.
func SHA256Hex(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}
