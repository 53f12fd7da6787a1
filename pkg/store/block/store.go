// Package block defines the key/value page storage that backs the shared
// memory (EA) space.
package block

import (
	"context"
	"errors"
)

var (
	// ErrBlockNotFound is returned when a requested block doesn't exist.
	// Shared memory treats it as an all-zero page.
	ErrBlockNotFound = errors.New("block not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store is a flat namespace of byte blocks addressed by string keys.
//
// Key format used by shared memory: "{prefix}page-{index as 12 hex digits}".
type Store interface {
	// WriteBlock stores data under key, replacing any previous contents.
	WriteBlock(ctx context.Context, key string, data []byte) error

	// ReadBlock returns the contents stored under key.
	// Returns ErrBlockNotFound if nothing was written.
	ReadBlock(ctx context.Context, key string) ([]byte, error)

	// DeleteBlock removes key. Deleting a missing key is not an error.
	DeleteBlock(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// ListByPrefix returns the keys starting with prefix in lexical order.
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error

	// HealthCheck verifies the store is accessible.
	HealthCheck(ctx context.Context) error
}
