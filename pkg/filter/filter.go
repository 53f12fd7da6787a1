// Package filter defines the filter control block: the LS-resident record of
// one dataflow filter, its tape slots and its persistent state region.
//
// An FCB occupies a single LS allocation:
//
//	Addr                    header (HeaderSize bytes, descriptor summary)
//	Addr+HeaderSize         data region
//	  +Layout.TapeOffset      tape slots, one handle word per input then output
//	  +Layout.StateOffset     persistent state (Layout.StateSize bytes)
package filter

import (
	"encoding/binary"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// HeaderSize is the size of the FCB header that precedes the data region.
const HeaderSize = 64

// WorkFunc is a filter's work routine. It runs iters iterations against the
// attached tapes and must not block.
type WorkFunc func(param, state []byte, inputs, outputs []*buffer.CB, iters uint32)

// Desc describes a filter as the host supplies it.
type Desc struct {
	NumInputs  uint8
	NumOutputs uint8

	// StateSize and StateAddr locate the persistent state in shared memory.
	// Both are quadword multiples when StateSize is non-zero.
	StateSize uint32
	StateAddr uint64

	Work  WorkFunc
	Param []byte
}

// Layout locates the regions of the data area, relative to its start.
type Layout struct {
	TapeOffset  uint32
	TapeSize    uint32
	StateOffset uint32
	StateSize   uint32
}

// NewLayout computes the data area layout for a filter with the given tape
// counts and state size.
func NewLayout(inputs, outputs uint8, stateSize uint32) Layout {
	tapes := localstore.RoundUp((uint32(inputs)+uint32(outputs))*localstore.PointerSize, localstore.QwordSize)
	return Layout{
		TapeOffset:  0,
		TapeSize:    tapes,
		StateOffset: tapes,
		StateSize:   stateSize,
	}
}

// Size is the LS footprint of an FCB for desc.
func Size(desc Desc) uint32 {
	l := NewLayout(desc.NumInputs, desc.NumOutputs, desc.StateSize)
	return HeaderSize + l.StateOffset + localstore.RoundUp(l.StateSize, localstore.QwordSize)
}

// CB is a filter control block.
type CB struct {
	Addr    localstore.Addr
	Desc    Desc
	Layout  Layout
	Inputs  []*buffer.CB
	Outputs []*buffer.CB

	ls *localstore.Store

	checkState
}

// New binds an FCB to its LS allocation. The block is unusable until a
// load command installs a descriptor.
func New(ls *localstore.Store, addr localstore.Addr) *CB {
	return &CB{Addr: addr, ls: ls}
}

// Install copies desc into the block and lays out the data region. Tape
// slots are left for the caller to initialise.
func (f *CB) Install(desc Desc) {
	f.Desc = desc
	f.Layout = NewLayout(desc.NumInputs, desc.NumOutputs, desc.StateSize)
	f.Inputs = make([]*buffer.CB, desc.NumInputs)
	f.Outputs = make([]*buffer.CB, desc.NumOutputs)

	hdr := f.ls.Bytes(f.Addr, HeaderSize)
	clear(hdr)
	hdr[0] = desc.NumInputs
	hdr[1] = desc.NumOutputs
	binary.LittleEndian.PutUint32(hdr[4:], desc.StateSize)
	binary.LittleEndian.PutUint64(hdr[8:], desc.StateAddr)
}

// DataAddr is the LS address of the data region.
func (f *CB) DataAddr() localstore.Addr {
	return f.Addr + HeaderSize
}

// StateAddr is the LS address of the persistent state region.
func (f *CB) StateAddr() localstore.Addr {
	return f.DataAddr() + localstore.Addr(f.Layout.StateOffset)
}

// State is the persistent state region, or nil for stateless filters.
func (f *CB) State() []byte {
	if f.Layout.StateSize == 0 {
		return nil
	}
	return f.ls.Bytes(f.StateAddr(), f.Layout.StateSize)
}

// SetInput stores b in input slot i.
func (f *CB) SetInput(i int, b *buffer.CB) {
	f.Inputs[i] = b
	f.putSlot(i, b)
}

// SetOutput stores b in output slot i.
func (f *CB) SetOutput(i int, b *buffer.CB) {
	f.Outputs[i] = b
	f.putSlot(int(f.Desc.NumInputs)+i, b)
}

// ResetTapes points every slot at the unattached sentinel.
func (f *CB) ResetTapes(sentinel *buffer.CB) {
	for i := range f.Inputs {
		f.SetInput(i, sentinel)
	}
	for i := range f.Outputs {
		f.SetOutput(i, sentinel)
	}
}

// Slot returns the handle word stored in LS for tape slot i, counting
// inputs first.
func (f *CB) Slot(i int) buffer.Handle {
	return buffer.Handle(binary.LittleEndian.Uint32(f.slotBytes(i)))
}

func (f *CB) putSlot(i int, b *buffer.CB) {
	binary.LittleEndian.PutUint32(f.slotBytes(i), uint32(b.Handle))
}

func (f *CB) slotBytes(i int) []byte {
	addr := f.DataAddr() + localstore.Addr(f.Layout.TapeOffset) + localstore.Addr(i*localstore.PointerSize)
	return f.ls.Bytes(addr, localstore.PointerSize)
}
