// Package dma models the transfer channel between the local store and shared
// memory: a pool of completion tags, a bounded queue of transfer slots, and
// asynchronous get (EA to LS) and put (LS to EA) pieces.
package dma

import "github.com/yxiaowhut/streamit/pkg/localstore"

// Tag groups outstanding transfers so their completion can be polled.
type Tag int

// InvalidTag is returned by ReserveTag when the pool is exhausted.
const InvalidTag Tag = -1

// Direction of a transfer piece.
type Direction uint8

const (
	// Get copies shared memory into the local store.
	Get Direction = iota
	// Put copies the local store out to shared memory.
	Put
)

func (d Direction) String() string {
	switch d {
	case Get:
		return "get"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

const (
	// DefaultTags is the size of the tag pool.
	DefaultTags = 32

	// DefaultSlots is the transfer queue depth.
	DefaultSlots = 16

	// MaxTransferSize is the largest piece a single transfer may move.
	MaxTransferSize = 16 * 1024
)

// Engine is what command handlers see of the transfer channel. None of its
// methods block: waiting for a slot or a tag is expressed by suspending the
// handler and letting the dispatcher poll QueryAvail and TagIdle.
type Engine interface {
	// ReserveTag takes a tag from the pool, or returns InvalidTag.
	ReserveTag() Tag

	// ReleaseTag returns a tag with no outstanding transfers to the pool.
	ReleaseTag(tag Tag)

	// QueryAvail reports whether n transfers can be issued right now.
	QueryAvail(n int) bool

	// Get issues an EA to LS piece under tag.
	Get(tag Tag, lsa localstore.Addr, ea uint64, size uint32)

	// Put issues an LS to EA piece under tag.
	Put(tag Tag, lsa localstore.Addr, ea uint64, size uint32)

	// TagIdle reports whether every piece issued under tag has finished.
	TagIdle(tag Tag) bool

	// MaxTransferSize is the largest size Get and Put accept.
	MaxTransferSize() uint32
}
