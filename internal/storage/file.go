package storage

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
)

// FileKV implements KV as one file per key under a directory. Writes go
// through a temp file + rename so each Set is atomic.
type FileKV struct {
	dir string
	mu  sync.RWMutex
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (s *FileKV) path(key string) string {
	// Hex-encode so keys never escape the directory.
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+".blob")
}

// Get returns the value stored at key
func (s *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value at key
func (s *FileKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "kv-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// Remove deletes key
func (s *FileKV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close is a no-op for the file store.
func (s *FileKV) Close() error {
	return nil
}
