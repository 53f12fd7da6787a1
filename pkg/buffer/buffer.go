// Package buffer implements the buffer control blocks that tapes point at:
// a power-of-two ring of 32-bit words in local store with free-running head
// and tail offsets, plus the handle registry used by attach commands.
package buffer

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// Handle is the opaque name a host uses for a buffer. It is the LS address
// of the buffer's data ring; None is the null handle.
type Handle uint32

// None detaches a tape.
const None Handle = 0

// Action records which operation currently drives one side of a buffer.
type Action uint8

const (
	ActionNone Action = iota
	ActionRun
)

func (a Action) String() string {
	if a == ActionRun {
		return "run"
	}
	return "none"
}

// wordSize is the granularity of Push32/Pop32.
const wordSize = 4

// CB is a buffer control block.
//
// Head is the consumer offset and Tail the producer offset, both in bytes.
// They run freely and are masked on access, so Tail-Head is always the
// number of bytes queued.
type CB struct {
	Handle Handle
	Head   uint32
	Tail   uint32

	data []byte
	mask uint32

	side
}

// New wraps an LS region as a buffer. The region length must be a power of
// two and at least one quadword.
func New(h Handle, data []byte) (*CB, error) {
	n := len(data)
	if n < localstore.QwordSize || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("buffer size %d must be a power of two >= %d", n, localstore.QwordSize)
	}
	return &CB{Handle: h, data: data, mask: uint32(n - 1)}, nil
}

// Size is the ring capacity in bytes.
func (b *CB) Size() uint32 {
	return uint32(len(b.data))
}

// Len is the number of queued bytes.
func (b *CB) Len() uint32 {
	return b.Tail - b.Head
}

// Free is the number of bytes that can be pushed.
func (b *CB) Free() uint32 {
	return b.Size() - b.Len()
}

// Words is the number of queued 32-bit words.
func (b *CB) Words() int {
	return int(b.Len() / wordSize)
}

// Push32 appends v at the tail. It reports false when the ring is full.
func (b *CB) Push32(v uint32) bool {
	if b.Free() < wordSize {
		return false
	}
	binary.LittleEndian.PutUint32(b.data[b.Tail&b.mask:], v)
	b.Tail += wordSize
	return true
}

// Pop32 removes the word at the head. It reports false when the ring is
// empty.
func (b *CB) Pop32() (uint32, bool) {
	if b.Len() < wordSize {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(b.data[b.Head&b.mask:])
	b.Head += wordSize
	return v, true
}

// Peek32 returns the i-th queued word without consuming it.
func (b *CB) Peek32(i int) (uint32, bool) {
	off := uint32(i) * wordSize
	if i < 0 || off+wordSize > b.Len() {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b.data[(b.Head+off)&b.mask:]), true
}

// Reset empties the ring.
func (b *CB) Reset() {
	b.Head, b.Tail = 0, 0
}
