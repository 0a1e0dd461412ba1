package cache

import (
	"context"
	"fmt"
)

// Names of the durable area and the single blob it holds
const (
	AreaName  = "weather_db"
	StoreName = "databases"
	BlobKey   = "weather"
)

// BlobStore mirrors the embedded store's binary image into durable storage.
// Restore returns nil without an error when nothing was persisted yet.
// Persist returns only after the backend acknowledged the write, so a
// following Restore observes it.
type BlobStore interface {
	Restore(ctx context.Context) ([]byte, error)
	Persist(ctx context.Context, image []byte) error
}

// PersistenceError is returned by every BlobStore when the durable area
// can not be opened, read or written
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(backend, op string, err error) *PersistenceError {
	return &PersistenceError{
		Backend: backend,
		Op:      op,
		Err:     err,
	}
}
