// Package shared implements the effective-address (EA) space that DMA
// transfers read from and write to.
package shared

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/yxiaowhut/streamit/pkg/bufpool"
	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// Memory is a byte-addressable EA space. Implementations must be safe for
// concurrent use; the DMA controller issues pieces from several goroutines.
type Memory interface {
	ReadAt(ctx context.Context, p []byte, ea uint64) error
	WriteAt(ctx context.Context, p []byte, ea uint64) error
}

const (
	// DefaultPageSize is the page granularity used when none is configured.
	DefaultPageSize = 64 * 1024

	// DefaultPrefix namespaces page keys inside the block store.
	DefaultPrefix = "ea/"

	lockStripes = 64
)

// Paged maps the EA space onto fixed-size pages kept in a block.Store.
// Pages that were never written read as zeros. Partial page writes are
// read-modify-write under a striped per-page lock.
type Paged struct {
	store    block.Store
	prefix   string
	pageSize uint64
	shift    uint
	pool     *bufpool.Pool
	locks    [lockStripes]sync.Mutex
}

// Option configures a Paged memory.
type Option func(*Paged)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(m *Paged) { m.prefix = prefix }
}

// WithPool stages pages through pool instead of a private one.
func WithPool(pool *bufpool.Pool) Option {
	return func(m *Paged) { m.pool = pool }
}

// NewPaged creates a paged EA space. pageSize must be a power of two no
// smaller than a quadword.
func NewPaged(store block.Store, pageSize uint32, opts ...Option) (*Paged, error) {
	if pageSize < 16 || bits.OnesCount32(pageSize) != 1 {
		return nil, fmt.Errorf("page size %d must be a power of two >= 16", pageSize)
	}

	m := &Paged{
		store:    store,
		prefix:   DefaultPrefix,
		pageSize: uint64(pageSize),
		shift:    uint(bits.TrailingZeros32(pageSize)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = bufpool.NewPool(&bufpool.Config{Sizes: []int{int(pageSize)}})
	}
	return m, nil
}

// PageSize returns the page granularity in bytes.
func (m *Paged) PageSize() uint32 {
	return uint32(m.pageSize)
}

func (m *Paged) pageKey(page uint64) string {
	return fmt.Sprintf("%spage-%012x", m.prefix, page)
}

func (m *Paged) lock(page uint64) *sync.Mutex {
	return &m.locks[page%lockStripes]
}

// span calls fn for each page touched by [ea, ea+n), passing the page index,
// the offset within that page and the offset within the caller's buffer.
func (m *Paged) span(ea uint64, n int, fn func(page, pageOff uint64, bufOff, length int) error) error {
	if ea+uint64(n) < ea {
		return fmt.Errorf("range [%#x, +%d) overflows the address space", ea, n)
	}
	for done := 0; done < n; {
		addr := ea + uint64(done)
		page := addr >> m.shift
		off := addr & (m.pageSize - 1)
		length := int(min(m.pageSize-off, uint64(n-done)))
		if err := fn(page, off, done, length); err != nil {
			return err
		}
		done += length
	}
	return nil
}

// ReadAt fills p with the bytes at ea.
func (m *Paged) ReadAt(ctx context.Context, p []byte, ea uint64) error {
	return m.span(ea, len(p), func(page, off uint64, bufOff, length int) error {
		dst := p[bufOff : bufOff+length]

		mu := m.lock(page)
		mu.Lock()
		data, err := m.store.ReadBlock(ctx, m.pageKey(page))
		mu.Unlock()

		switch {
		case errors.Is(err, block.ErrBlockNotFound):
			clear(dst)
			return nil
		case err != nil:
			return fmt.Errorf("read page %d: %w", page, err)
		}

		// Short pages are zero-extended.
		clear(dst)
		if off < uint64(len(data)) {
			copy(dst, data[off:])
		}
		return nil
	})
}

// WriteAt stores p at ea.
func (m *Paged) WriteAt(ctx context.Context, p []byte, ea uint64) error {
	return m.span(ea, len(p), func(page, off uint64, bufOff, length int) error {
		src := p[bufOff : bufOff+length]
		key := m.pageKey(page)

		mu := m.lock(page)
		mu.Lock()
		defer mu.Unlock()

		buf := m.pool.Get(int(m.pageSize))
		defer m.pool.Put(buf)
		clear(buf)

		if off != 0 || uint64(length) != m.pageSize {
			data, err := m.store.ReadBlock(ctx, key)
			if err != nil && !errors.Is(err, block.ErrBlockNotFound) {
				return fmt.Errorf("read page %d: %w", page, err)
			}
			copy(buf, data)
		}
		copy(buf[off:], src)

		if err := m.store.WriteBlock(ctx, key, buf); err != nil {
			return fmt.Errorf("write page %d: %w", page, err)
		}
		return nil
	})
}

// Pages returns the number of materialised pages.
func (m *Paged) Pages(ctx context.Context) (int, error) {
	keys, err := m.store.ListByPrefix(ctx, m.prefix)
	if err != nil {
		return 0, fmt.Errorf("list pages: %w", err)
	}
	return len(keys), nil
}

// Reset discards every page, returning the space to all zeros.
func (m *Paged) Reset(ctx context.Context) error {
	if err := m.store.DeleteByPrefix(ctx, m.prefix); err != nil {
		return fmt.Errorf("reset shared memory: %w", err)
	}
	return nil
}

var _ Memory = (*Paged)(nil)
