// Package kvstore persists small documents under fixed keys. It is the
// durable tier behind the invoice store; binary attachments never reach it.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("key not found")
)

// Store is a durable key-value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}
