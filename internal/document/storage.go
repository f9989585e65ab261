package document

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage keeps the original upload bytes
type Storage interface {
	// Save writes data under name and returns the key to read it back with
	Save(name string, data []byte) (string, error)

	// Get reads a stored upload
	Get(key string) ([]byte, error)

	// Delete removes a stored upload
	Delete(key string) error
}

// LocalStorage keeps uploads as files in a single directory
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir if needed and returns a LocalStorage rooted there
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// path confines keys to the storage directory
func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.dir, filepath.Base(key))
}

// Save writes an upload to disk
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	key := filepath.Base(name)
	if err := os.WriteFile(l.path(key), data, 0644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return key, nil
}

// Get reads an upload from disk
func (l *LocalStorage) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}

// Delete removes an upload from disk
func (l *LocalStorage) Delete(key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}
