package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// snapshot is the on-disk layout of a File store.
type snapshot struct {
	SavedAt time.Time         `json:"savedAt"`
	Values  map[string]string `json:"values"`
}

// File keeps the values in memory and rewrites a JSON snapshot on every
// change. Writes go to path+".tmp" first and are renamed into place.
type File struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFile opens the snapshot at path, creating its directory if needed. A
// missing file is an empty store; a corrupt one is an error.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	f := &File{path: path, data: make(map[string]string)}
	snap, err := loadSnapshot(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", path, err)
	default:
		for k, v := range snap.Values {
			f.data[k] = v
		}
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.flush()
}

func (f *File) Keys(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.data), nil
}

// Path returns the snapshot location.
func (f *File) Path() string {
	return f.path
}

// flush must be called with f.mu held.
func (f *File) flush() error {
	values := make(map[string]string, len(f.data))
	for k, v := range f.data {
		values[k] = v
	}
	return saveSnapshot(f.path, snapshot{SavedAt: time.Now().UTC(), Values: values})
}

func loadSnapshot(path string) (snapshot, error) {
	var snap snapshot
	fh, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer fh.Close()
	err = json.NewDecoder(fh).Decode(&snap)
	return snap, err
}

func saveSnapshot(path string, snap snapshot) error {
	tmp := path + ".tmp"
	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		fh.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
