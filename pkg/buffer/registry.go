package buffer

import (
	"sync"

	"github.com/yxiaowhut/streamit/pkg/check"
)

// Resolver maps handles to control blocks. None resolves to a sentinel that
// is never a real buffer.
type Resolver interface {
	Lookup(h Handle) *CB
}

// Registry is the in-process Resolver.
type Registry struct {
	mu       sync.RWMutex
	buffers  map[Handle]*CB
	sentinel *CB
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		buffers:  make(map[Handle]*CB),
		sentinel: &CB{Handle: None},
	}
}

// Sentinel is the control block that unattached tape slots point at.
func (r *Registry) Sentinel() *CB {
	return r.sentinel
}

// Register makes cb resolvable by its handle.
func (r *Registry) Register(cb *CB) {
	check.Pre(cb.Handle != None, "register of buffer with null handle")

	r.mu.Lock()
	defer r.mu.Unlock()
	check.Pre(r.buffers[cb.Handle] == nil, "duplicate buffer handle %#x", uint32(cb.Handle))
	r.buffers[cb.Handle] = cb
}

// Lookup resolves h. An unknown handle is a precondition failure.
func (r *Registry) Lookup(h Handle) *CB {
	if h == None {
		return r.sentinel
	}

	r.mu.RLock()
	cb := r.buffers[h]
	r.mu.RUnlock()

	check.Pre(cb != nil, "unknown buffer handle %#x", uint32(h))
	return cb
}

// Len returns the number of registered buffers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buffers)
}

var _ Resolver = (*Registry)(nil)
