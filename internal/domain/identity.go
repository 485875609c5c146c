package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateFileID creates a stable id for a library file.
// The same path in the same directory type always yields the same 16-char hex id.
func GenerateFileID(directoryType, path string) string {
	input := fmt.Sprintf("%s-%s", directoryType, path)
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:8])
}
