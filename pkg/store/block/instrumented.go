package block

import (
	"context"
	"errors"
	"time"

	"github.com/yxiaowhut/streamit/pkg/metrics"
)

// Instrumented reports every call on the wrapped store to a StoreMetrics
// under the given backend label.
type Instrumented struct {
	Store
	backend string
	metrics metrics.StoreMetrics
}

// Instrument wraps s. A nil m returns s unchanged.
func Instrument(s Store, backend string, m metrics.StoreMetrics) Store {
	if m == nil {
		return s
	}
	return &Instrumented{Store: s, backend: backend, metrics: m}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	metrics.ObserveOperation(s.metrics, s.backend, op, time.Since(start), err)
}

func (s *Instrumented) WriteBlock(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.Store.WriteBlock(ctx, key, data)
	s.observe("write", start, err)
	if err == nil {
		metrics.RecordBytes(s.metrics, s.backend, "write", len(data))
	}
	return err
}

func (s *Instrumented) ReadBlock(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.Store.ReadBlock(ctx, key)
	// A missing page is a normal zero-fill, not a failure.
	if errors.Is(err, ErrBlockNotFound) {
		s.observe("read", start, nil)
		return nil, err
	}
	s.observe("read", start, err)
	metrics.RecordBytes(s.metrics, s.backend, "read", len(data))
	return data, err
}

func (s *Instrumented) DeleteBlock(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Store.DeleteBlock(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *Instrumented) DeleteByPrefix(ctx context.Context, prefix string) error {
	start := time.Now()
	err := s.Store.DeleteByPrefix(ctx, prefix)
	s.observe("delete_prefix", start, err)
	return err
}

func (s *Instrumented) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.Store.ListByPrefix(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}
