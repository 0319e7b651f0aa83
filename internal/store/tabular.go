package store

import (
	"context"
	"fmt"
	"log/slog"

	"tradeetl/internal/table"
	"tradeetl/internal/util"
)

// tabular implements TabularStore on top of a blobStore. Backends embed it.
type tabular struct {
	blobs  blobStore
	logger *slog.Logger
}

func newTabular(blobs blobStore, logger *slog.Logger) tabular {
	return tabular{blobs: blobs, logger: util.OrDefault(logger)}
}

// Read fetches the object at key and decodes it by extension.
func (s tabular) Read(ctx context.Context, key string) (*table.Table, error) {
	s.logger.Info("reading table", "location", s.blobs.location(key))

	f, err := table.FormatFromKey(key)
	if err != nil {
		return nil, err
	}
	body, err := s.blobs.get(ctx, key)
	if err != nil {
		return nil, err
	}
	t, err := table.Decode(f, body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return t, nil
}

// Write encodes t by the key extension and stores it, replacing any prior
// object. Empty tables are skipped.
func (s tabular) Write(ctx context.Context, key string, t *table.Table) (bool, error) {
	if t.Empty() {
		s.logger.Info("table is empty, no object will be written", "key", key)
		return false, nil
	}

	f, err := table.FormatFromKey(key)
	if err != nil {
		s.logger.Info("format is not supported for writing", "key", key)
		return false, err
	}
	body, err := table.Encode(f, t)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", key, err)
	}

	s.logger.Info("writing table", "location", s.blobs.location(key), "rows", t.Len())
	if err := s.blobs.put(ctx, key, body); err != nil {
		return false, err
	}
	return true, nil
}

// List returns keys under prefix.
func (s tabular) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.list(ctx, prefix)
}
