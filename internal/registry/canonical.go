package registry

import "strings"

const desktopSuffix = ".desktop"

// CanonicalID derives the namespace-safe application id from a desktop id:
// the literal ".desktop" suffix is stripped, the result is lower-cased and
// every '.' becomes '_'. The mapping is idempotent.
func CanonicalID(desktopID string) string {
	id := strings.TrimSpace(desktopID)
	id = strings.TrimSuffix(id, desktopSuffix)
	id = strings.ToLower(id)
	return strings.ReplaceAll(id, ".", "_")
}

// DesktopFileName returns desktopID with the ".desktop" suffix present.
func DesktopFileName(desktopID string) string {
	id := strings.TrimSpace(desktopID)
	if strings.HasSuffix(id, desktopSuffix) {
		return id
	}
	return id + desktopSuffix
}
