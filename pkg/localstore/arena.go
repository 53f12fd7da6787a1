package localstore

import (
	"errors"
	"fmt"
	"sync"
)

// ErrExhausted is returned when an allocation does not fit in the store.
var ErrExhausted = errors.New("local store exhausted")

// Arena is a bump allocator over a Store. Every region it returns is
// quadword aligned and zeroed. Address 0 is reserved so that a zero Addr can
// mean "none".
type Arena struct {
	mu   sync.Mutex
	ls   *Store
	next Addr
}

// NewArena creates an allocator that hands out regions of ls.
func NewArena(ls *Store) *Arena {
	return &Arena{ls: ls, next: QwordSize}
}

// Alloc reserves size bytes, rounded up to a quadword.
func (a *Arena) Alloc(size uint32) (Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := RoundUp(size, QwordSize)
	if n == 0 {
		n = QwordSize
	}
	if !a.ls.Contains(a.next, n) {
		return 0, fmt.Errorf("allocate %d bytes at %#x: %w", n, a.next, ErrExhausted)
	}
	addr := a.next
	a.next += Addr(n)
	clear(a.ls.Bytes(addr, n))
	return addr, nil
}

// Used returns the number of bytes handed out, including the reserved
// leading quadword.
func (a *Arena) Used() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(a.next)
}

// Reset releases every region at once.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.next = QwordSize
	a.mu.Unlock()
}
