// Package storage provides the durable key-value store backing the
// printer registry. Each key holds one serialized blob; Get/Set/Remove
// are individually atomic.
package storage

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid data")
)

// Storage keys owned by this service.
const (
	KeySavedPrinters = "pos_saved_printers"
	KeySyncSnapshots = "pos_printer_sync_snapshots"
)

// KV defines the storage interface
type KV interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close the store
	Close() error
}
