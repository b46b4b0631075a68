package serialization

import (
	"crypto/sha256"
	"encoding/hex"
)

// computeChecksum returns the hex-encoded SHA-256 checksum of data.
func computeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validateChecksum compares the data section against the checksum stored
// in the header. An empty stored checksum is accepted for forward
// compatibility with writers that skipped it.
func validateChecksum(data []byte, stored string) error {
	if stored == "" {
		return nil
	}
	if computeChecksum(data) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
