// Package store abstracts the blob store that holds news objects. Objects
// are addressed by opaque handles captured from List and Put results; callers
// never rebuild a handle from item fields.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/thenotsodarkknight/based/internal/config"
)

// ErrNotFound is returned by Get when no object exists at the handle.
var ErrNotFound = errors.New("object not found")

// Handle is the exact addressable location of one stored object.
type Handle struct {
	Key string `json:"key"`
}

// IsZero reports whether the handle addresses nothing.
func (h Handle) IsZero() bool {
	return h.Key == ""
}

// Store is the blob store boundary shared by all backends.
type Store interface {
	// List returns handles for every object whose key starts with prefix,
	// in lexicographic key order.
	List(ctx context.Context, prefix string) ([]Handle, error)
	// Get returns the object bytes at h, or ErrNotFound.
	Get(ctx context.Context, h Handle) ([]byte, error)
	// Put writes data under key and returns the handle addressing it.
	Put(ctx context.Context, key string, data []byte) (Handle, error)
	// Delete removes the object at h. Deleting an already-deleted handle is
	// not an error.
	Delete(ctx context.Context, h Handle) error
	// Ping probes backend connectivity.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Open builds the store backend selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	switch cfg.Backend() {
	case config.BackendFilesystem:
		return NewFilesystem(cfg.DataDir)
	case config.BackendRedis:
		return NewRedis(ctx, cfg)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// IsNotFound reports whether err means the object was missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
