// Package store keeps the final snapshot of finished jobs so a client can
// still fetch the outcome after the job leaves the in-memory registry.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no snapshot exists for the id
var ErrNotFound = errors.New("snapshot not found")

// Store persists opaque job snapshots keyed by job id
type Store interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
}
