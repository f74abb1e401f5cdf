package config

import (
	"os"
	"strings"
)

// CompiledSecret may be embedded at build time via -ldflags. When empty,
// Secret falls back to the MSGMENU_SECRET environment variable.
var CompiledSecret string

// Secret returns the installation secret used to derive the service token.
func Secret() string {
	if compiled := strings.TrimSpace(CompiledSecret); compiled != "" {
		return compiled
	}
	return strings.TrimSpace(os.Getenv("MSGMENU_SECRET"))
}
