// Package fs stores shared-memory pages as files under a base directory, so a
// pipeline's EA contents survive between runs.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// Config holds configuration for the filesystem store.
type Config struct {
	// BasePath is the root directory. Keys are slash-separated paths below it.
	BasePath string

	// CreateDir creates BasePath if it doesn't exist.
	CreateDir bool

	// DirMode is the permission mode for created directories. Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for page files. Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration rooted at basePath.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// Store is a filesystem-backed block.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

// New opens (and optionally creates) the store directory.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("create base path: %w", err)
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("stat base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path %q is not a directory", cfg.BasePath)
	}

	return &Store{
		basePath: cfg.BasePath,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// WriteBlock writes through a temporary file and renames it into place so a
// crash never leaves a torn page behind.
func (s *Store) WriteBlock(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}

	p := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(p), s.dirMode); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, s.fileMode); err != nil {
		return fmt.Errorf("write page %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit page %s: %w", key, err)
	}
	return nil
}

func (s *Store) ReadBlock(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, block.ErrStoreClosed
	}

	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, block.ErrBlockNotFound
		}
		return nil, fmt.Errorf("read page %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) DeleteBlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	return s.remove(key)
}

func (s *Store) remove(key string) error {
	p := s.keyPath(key)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete page %s: %w", key, err)
	}
	s.cleanEmptyDirs(filepath.Dir(p))
	return nil
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (s *Store) DeleteByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}

	keys, err := s.list(prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, block.ErrStoreClosed
	}
	return s.list(prefix)
}

// list walks the deepest directory named by prefix and keeps the keys that
// start with it. A prefix need not end on a directory boundary.
func (s *Store) list(prefix string) ([]string, error) {
	dir := path.Dir(prefix)
	if strings.HasSuffix(prefix, "/") {
		dir = strings.TrimSuffix(prefix, "/")
	}
	root := s.keyPath(dir)

	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pages under %q: %w", prefix, err)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	if _, err := os.Stat(s.basePath); err != nil {
		return fmt.Errorf("base path unavailable: %w", err)
	}
	return nil
}

// BasePath returns the root directory of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

var _ block.Store = (*Store)(nil)
