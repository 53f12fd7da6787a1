// Package badger keeps shared-memory pages in an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// Config holds configuration for the badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database entirely in memory.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// Store is a BadgerDB-backed block.Store. Keys are stored verbatim.
type Store struct {
	db *badgerdb.DB
}

// New opens the database described by cfg.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger path is required unless in_memory is set")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) WriteBlock(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
	return wrap(err, "write page %s", key)
}

func (s *Store) ReadBlock(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, block.ErrBlockNotFound
	}
	if err != nil {
		return nil, wrap(err, "read page %s", key)
	}
	return data, nil
}

func (s *Store) DeleteBlock(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	return wrap(err, "delete page %s", key)
}

func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db.DropPrefix([]byte(prefix)), "delete pages under %q", prefix)
}

func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "list pages under %q", prefix)
	}
	return keys, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck opens a read transaction, which fails once the database is
// closed.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return block.ErrStoreClosed
	}
	err := s.db.View(func(*badgerdb.Txn) error { return nil })
	return wrap(err, "healthcheck")
}

func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return block.ErrStoreClosed
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

var _ block.Store = (*Store)(nil)
