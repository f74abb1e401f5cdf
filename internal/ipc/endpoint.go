package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const socketName = "msgmenu.sock"

// Endpoint is a network address of the indicator service or of a
// registered application.
type Endpoint struct {
	Network string
	Address string
}

// DefaultEndpoint resolves the service socket using environment overrides.
func DefaultEndpoint() Endpoint {
	if raw := strings.TrimSpace(os.Getenv("MSGMENU_SOCKET")); raw != "" {
		if ep, err := ParseEndpoint(raw); err == nil {
			return ep
		}
	}
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return Endpoint{Network: "unix", Address: filepath.Join(dir, socketName)}
	}
	return Endpoint{Network: "unix", Address: filepath.Join(os.TempDir(), fmt.Sprintf("msgmenu-%d.sock", os.Getuid()))}
}

// ParseEndpoint accepts "unix:///path", "tcp://host:port" or a bare socket path.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, errors.New("ipc: empty endpoint")
	}
	network, address, found := strings.Cut(raw, "://")
	if !found {
		return Endpoint{Network: "unix", Address: raw}, nil
	}
	switch network {
	case "unix", "tcp":
	default:
		return Endpoint{}, fmt.Errorf("ipc: unsupported network %q", network)
	}
	if address == "" {
		return Endpoint{}, fmt.Errorf("ipc: endpoint %q has no address", raw)
	}
	return Endpoint{Network: network, Address: address}, nil
}

// Listen binds to the endpoint. A unix socket file left behind by a dead
// process is removed first; a live one is reported as an error.
func (e Endpoint) Listen() (net.Listener, error) {
	if e.Network != "unix" {
		return net.Listen(e.Network, e.Address)
	}
	if err := os.MkdirAll(filepath.Dir(e.Address), 0o700); err != nil {
		return nil, fmt.Errorf("ipc: create socket directory: %w", err)
	}
	if _, err := os.Stat(e.Address); err == nil {
		conn, dialErr := net.DialTimeout("unix", e.Address, 250*time.Millisecond)
		if dialErr == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("ipc: %s is already in use", e.Address)
		}
		if err := os.Remove(e.Address); err != nil {
			return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", e.Address)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(e.Address, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("ipc: restrict socket permissions: %w", err)
	}
	return ln, nil
}

// DialContext establishes a client connection with sensible timeouts.
func (e Endpoint) DialContext(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	return d.DialContext(ctx, e.Network, e.Address)
}

// String provides a readable representation for logs.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Network, e.Address)
}
