package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// File keeps the registration set in a single JSON document, sealed with
// the passphrase when one is given.
type File struct {
	path       string
	passphrase string

	mu     sync.Mutex
	ids    []string
	closed bool
}

type fileDocument struct {
	Applications []string `json:"applications"`
}

// OpenFile loads the set stored at path. A missing file yields an empty set.
func OpenFile(path, passphrase string) (*File, error) {
	f := &File{path: path, passphrase: passphrase}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data := raw
	if passphrase != "" {
		if data, err = decrypt(raw, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", path, err)
		}
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	for _, id := range doc.Applications {
		if id != "" && !slices.Contains(f.ids, id) {
			f.ids = append(f.ids, id)
		}
	}
	return f, nil
}

func (f *File) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	return slices.Clone(f.ids), nil
}

func (f *File) Add(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	if slices.Contains(f.ids, id) {
		return false, nil
	}
	next := append(slices.Clone(f.ids), id)
	if err := f.save(next); err != nil {
		return false, err
	}
	f.ids = next
	return true, nil
}

func (f *File) Remove(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	idx := slices.Index(f.ids, id)
	if idx < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(f.ids), idx, idx+1)
	if err := f.save(next); err != nil {
		return false, err
	}
	f.ids = next
	return true, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// save writes ids to a temporary file and renames it over the set.
func (f *File) save(ids []string) error {
	raw, err := json.MarshalIndent(fileDocument{Applications: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registrations: %w", err)
	}
	data := raw
	if f.passphrase != "" {
		if data, err = encrypt(raw, f.passphrase); err != nil {
			return fmt.Errorf("encrypt registrations: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("ensure store directory: %w", err)
	}
	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("write registrations: %w", err)
	}
	return os.Rename(tempFile, f.path)
}
