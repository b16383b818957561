// Package filestore is the durable key/value table that the virtual file
// system persists its project table into.
//
// Every backend stores opaque byte values under string keys. Get on a key
// that has never been written, or was deleted, returns ErrNotFound.
package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/codepad/internal/config"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Store is a durable key/value table.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Type names the backend, for logs and metrics labels.
	Type() string
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendBolt, "":
		return OpenBolt(cfg.BoltPath)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey.Value(),
			UsePathStyle: cfg.S3Endpoint != "",
		})
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN.Value())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
