package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var _ TabularStore = (*FileStore)(nil)

// FileStore keeps objects as files under a data directory. A key such as
// "report1/2021-04-16.parquet" maps to <DataDir>/report1/2021-04-16.parquet.
type FileStore struct {
	tabular
	DataDir string
}

// NewFileStore creates a FileStore rooted at the given data directory.
func NewFileStore(dataDir string, logger *slog.Logger) *FileStore {
	s := &FileStore{DataDir: dataDir}
	s.tabular = newTabular(s, logger)
	return s
}

// path returns the filesystem path for key, rejecting keys that leave DataDir.
func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.DataDir, clean), nil
}

func (s *FileStore) get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// put writes to a temp file first so readers never see a partial object.
func (s *FileStore) put(_ context.Context, key string, body []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) list(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.DataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.DataDir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.DataDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) location(key string) string {
	p, err := s.path(key)
	if err != nil {
		return key
	}
	return p
}
