// Package localstore models the core's private working memory: a fixed-size
// byte array addressed by 32-bit offsets, plus the alignment rules every
// transfer and control block must follow.
package localstore

import (
	"fmt"

	"github.com/yxiaowhut/streamit/pkg/check"
)

const (
	// QwordSize is the transfer and control-block alignment in bytes.
	QwordSize = 16

	// QwordMask masks the sub-quadword bits of an address.
	QwordMask = QwordSize - 1

	// PointerSize is the width of a tape-pointer slot in a control block.
	PointerSize = 4

	// DefaultSize is the local store size used when none is configured.
	DefaultSize = 256 * 1024
)

// Addr is a local-store address. Zero is never handed out by an Arena and
// doubles as the null address.
type Addr uint32

// RoundUp rounds n up to a multiple of align, which must be a power of two.
func RoundUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// Aligned reports whether v is a multiple of QwordSize.
func Aligned(v uint64) bool {
	return v&QwordMask == 0
}

// Store is the local store backing array.
type Store struct {
	mem []byte
}

// New allocates a local store of size bytes. size must be a non-zero
// multiple of QwordSize.
func New(size uint32) (*Store, error) {
	if size == 0 || !Aligned(uint64(size)) {
		return nil, fmt.Errorf("local store size %d is not a non-zero multiple of %d", size, QwordSize)
	}
	return &Store{mem: make([]byte, size)}, nil
}

// Size returns the capacity in bytes.
func (s *Store) Size() uint32 {
	return uint32(len(s.mem))
}

// Contains reports whether [addr, addr+n) lies inside the store.
func (s *Store) Contains(addr Addr, n uint32) bool {
	end := uint64(addr) + uint64(n)
	return end <= uint64(len(s.mem))
}

// Bytes returns the n bytes at addr. The slice aliases the store and is
// capped so appends cannot spill into neighbouring regions.
func (s *Store) Bytes(addr Addr, n uint32) []byte {
	check.Pre(s.Contains(addr, n), "local store range [%#x, +%d) out of bounds (size %d)", addr, n, len(s.mem))
	end := uint32(addr) + n
	return s.mem[addr:end:end]
}
