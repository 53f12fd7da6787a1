package command

import (
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// cursor is the advancing address pair of a chunked copy. The fields it
// points at belong to the command record (or, for state writeback, to the
// filter descriptor) so the copy resumes correctly after a suspension.
type cursor struct {
	lsa       *localstore.Addr
	ea        *uint64
	remaining *uint32
}

func aligned(lsa localstore.Addr, ea uint64, n uint32) bool {
	return localstore.Aligned(uint64(lsa)) && localstore.Aligned(ea) && localstore.Aligned(uint64(n))
}

func (h *Handler) reserveTag() dma.Tag {
	tag := h.env.DMA.ReserveTag()
	check.Invariant(tag != dma.InvalidTag, "transfer tag pool exhausted")
	return tag
}

// copyPiece issues the next piece of a chunked copy. It returns the wait to
// suspend on and true, or false once the copy has nothing left to issue; at
// that point the stage has moved to stageCopyDone.
//
// A zero remainder is the final piece. Nothing is issued for it since the
// channel rejects zero-length transfers.
func (h *Handler) copyPiece(hdr *header, dir dma.Direction, tag dma.Tag, c cursor) (Result, bool) {
	if *c.remaining == 0 {
		hdr.Stage = stageCopyDone
		return Result{}, false
	}
	if !h.env.DMA.QueryAvail(1) {
		return waitSlot, true
	}

	n := *c.remaining
	if limit := h.env.DMA.MaxTransferSize(); n > limit {
		n = limit
	} else {
		hdr.Stage = stageCopyDone
	}

	switch dir {
	case dma.Get:
		h.env.DMA.Get(tag, *c.lsa, *c.ea, n)
	case dma.Put:
		h.env.DMA.Put(tag, *c.lsa, *c.ea, n)
	}

	*c.lsa += localstore.Addr(n)
	*c.ea += uint64(n)
	*c.remaining -= n

	return waitTag(tag), true
}
