// Package store provides key-value persistence for group sessions.
package store

import (
	"context"
	"time"
)

// KV is the minimal key-value contract the session tracker depends on.
type KV interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set creates or replaces the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix, in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// StaleLister finds keys that have not been written since a cutoff.
type StaleLister interface {
	// KeysUpdatedBefore lists keys starting with prefix last written before cutoff.
	KeysUpdatedBefore(ctx context.Context, prefix string, cutoff time.Time) ([]string, error)
}

// Store is a KV backend with lifecycle management.
type Store interface {
	KV
	StaleLister

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
