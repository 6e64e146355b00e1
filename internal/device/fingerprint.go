package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the device identifier for a request. A client-supplied
// fingerprint is trusted verbatim; otherwise the identifier is a digest of a
// fixed, ordered header tuple so that identical inputs always produce the
// same value.
func Fingerprint(explicit, userAgent, remoteAddr, language, encoding string) string {
	if explicit != "" {
		return explicit
	}
	tuple := strings.Join([]string{userAgent, remoteAddr, language, encoding}, "|")
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])
}
