package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"
)

const serviceTokenPrefix = "msgmenu-service|"

// ResolveServiceToken returns explicit when set, then MSGMENU_SERVICE_TOKEN,
// and otherwise a stable value derived from secret. It returns "" when none
// is available.
func ResolveServiceToken(explicit, secret string) string {
	if token := strings.TrimSpace(explicit); token != "" {
		return token
	}
	if token := strings.TrimSpace(os.Getenv("MSGMENU_SERVICE_TOKEN")); token != "" {
		return token
	}
	return DeriveServiceToken(secret)
}

// DeriveServiceToken hashes the provided secret into a deterministic token.
func DeriveServiceToken(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(serviceTokenPrefix + secret))
	return hex.EncodeToString(sum[:])
}

// Authorize compares presented against expected in constant time. An empty
// expected token disables the check.
func Authorize(expected, presented string) bool {
	if expected == "" {
		return true
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
