// Package store defines the tabular object store the ETL job reads from and
// writes to, with S3, local-directory, SQLite and in-memory backends.
package store

import (
	"context"
	"errors"

	"tradeetl/internal/table"
)

// ErrNotFound is returned by Read when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// TabularStore reads and writes whole tables addressed by key. The encoding
// of each object follows its key extension (see table.FormatFromKey).
type TabularStore interface {
	// Read loads the table stored at key. It returns an error wrapping
	// ErrNotFound if the key does not exist.
	Read(ctx context.Context, key string) (*table.Table, error)

	// Write replaces the object at key with t. An empty table is not
	// written; Write then reports false without error.
	Write(ctx context.Context, key string, t *table.Table) (bool, error)

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// blobStore is the raw byte layer each backend provides.
type blobStore interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, body []byte) error
	list(ctx context.Context, prefix string) ([]string, error)
	location(key string) string
}
