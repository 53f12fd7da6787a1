package command

import (
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// CallFunc runs a host function on the core.
type CallFunc struct {
	header
	Func func()
}

func (*CallFunc) Kind() Kind { return KindCallFunc }

func (h *Handler) callFunc(cmd *CallFunc) Result {
	check.Pre(cmd.Func != nil, "call_func with nil function")
	cmd.Func()
	return h.complete(cmd)
}

// LoadData copies Bytes bytes from shared memory at Src into LS at Dest.
// All three must be quadword aligned. Dest, Src and Bytes advance as pieces
// are issued.
type LoadData struct {
	header
	Dest  localstore.Addr
	Src   uint64
	Bytes uint32

	Tag dma.Tag
}

func (*LoadData) Kind() Kind { return KindLoadData }

func (h *Handler) loadData(cmd *LoadData) Result {
	for {
		switch cmd.Stage {
		case stageInit:
			check.Pre(aligned(cmd.Dest, cmd.Src, cmd.Bytes),
				"load_data misaligned: dest=%#x src=%#x bytes=%d", cmd.Dest, cmd.Src, cmd.Bytes)
			cmd.Tag = h.reserveTag()
			cmd.Stage = stageCopy

		case stageCopy:
			if r, wait := h.copyPiece(&cmd.header, dma.Get, cmd.Tag,
				cursor{lsa: &cmd.Dest, ea: &cmd.Src, remaining: &cmd.Bytes}); wait {
				return r
			}

		case stageCopyDone:
			h.env.DMA.ReleaseTag(cmd.Tag)
			return h.complete(cmd)

		default:
			badStage(cmd)
		}
	}
}
