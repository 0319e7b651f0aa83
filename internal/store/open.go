package store

import (
	"fmt"
	"io"
	"log/slog"

	"tradeetl/internal/config"
)

// Open builds the backend described by cfg. The returned closer releases
// backend resources and is never nil.
func Open(cfg config.Store, logger *slog.Logger) (TabularStore, io.Closer, error) {
	switch cfg.Kind {
	case config.StoreS3:
		s, err := NewS3Store(S3Options{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case config.StoreFile:
		return NewFileStore(cfg.Dir, logger), nopCloser{}, nil
	case config.StoreSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreMemory:
		return NewMemoryStore(logger), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store kind %q", config.ErrConfig, cfg.Kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
