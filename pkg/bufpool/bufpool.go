// Package bufpool provides a tiered buffer pool for transfer staging.
//
// DMA pieces (at most 16 KiB) and shared-memory pages (64 KiB by default)
// are staged through pooled byte slices so that a long pipeline run does not
// allocate per transfer. Each tier is a sync.Pool of fixed-capacity slices;
// requests larger than the biggest tier are allocated directly and never
// pooled. One pool is shared by the transfer controller and the paged
// shared memory.
//
//	buf := pool.Get(size)
//	defer pool.Put(buf)
package bufpool

import (
	"slices"
	"sync"
)

// Default tier capacities.
const (
	// DefaultSmallSize covers control-block sized pieces (1KB)
	DefaultSmallSize = 1 << 10

	// DefaultPieceSize matches the largest DMA piece (16KB)
	DefaultPieceSize = 16 << 10

	// DefaultPageSize matches the default shared-memory page (64KB)
	DefaultPageSize = 64 << 10
)

// Config lists the tier capacities. Zero or negative entries are ignored.
type Config struct {
	Sizes []int
}

// DefaultConfig returns the default tiers.
func DefaultConfig() Config {
	return Config{Sizes: []int{DefaultSmallSize, DefaultPieceSize, DefaultPageSize}}
}

type tier struct {
	size int
	pool sync.Pool
}

// Pool hands out slices from the smallest tier that fits.
type Pool struct {
	tiers []*tier
}

// NewPool creates a pool. A nil config or one with no usable sizes gets the
// defaults.
func NewPool(cfg *Config) *Pool {
	var sizes []int
	if cfg != nil {
		for _, s := range cfg.Sizes {
			if s > 0 {
				sizes = append(sizes, s)
			}
		}
	}
	if len(sizes) == 0 {
		sizes = DefaultConfig().Sizes
	}
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	p := &Pool{tiers: make([]*tier, len(sizes))}
	for i, size := range sizes {
		t := &tier{size: size}
		t.pool.New = func() any {
			buf := make([]byte, t.size)
			return &buf
		}
		p.tiers[i] = t
	}
	return p
}

// Get returns a slice of length size. Its capacity is the tier size, or
// exactly size when no tier is large enough. Contents are not zeroed.
func (p *Pool) Get(size int) []byte {
	for _, t := range p.tiers {
		if size <= t.size {
			buf := *t.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a slice obtained from Get. Slices whose capacity does not
// match a tier are dropped for the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	c := cap(buf)
	for _, t := range p.tiers {
		if c == t.size {
			full := buf[:c]
			t.pool.Put(&full)
			return
		}
	}
}

// Sizes returns the tier capacities in ascending order.
func (p *Pool) Sizes() []int {
	out := make([]int, len(p.tiers))
	for i, t := range p.tiers {
		out[i] = t.size
	}
	return out
}
