package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Backends accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// StringSet is an insertion-ordered set of strings.
type StringSet interface {
	// List returns every member in insertion order.
	List(ctx context.Context) ([]string, error)
	// Add appends id if absent and reports whether it was added.
	Add(ctx context.Context, id string) (bool, error)
	// Remove deletes id and reports whether it was present.
	Remove(ctx context.Context, id string) (bool, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Path       string
	Passphrase string
}

// Open returns the backend named by opts.Backend. An empty backend selects SQLite.
func Open(opts Options) (StringSet, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("store: empty path")
	}
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendFile:
		return OpenFile(opts.Path, opts.Passphrase)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
