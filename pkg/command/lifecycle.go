package command

import (
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/metrics"
)

// FilterLoad installs Desc into Filter and stages the filter's persistent
// state from shared memory. Desc.StateAddr and Desc.StateSize advance as the
// state is copied; Filter keeps the original values.
type FilterLoad struct {
	header
	Filter *filter.CB
	Desc   filter.Desc

	Tag      dma.Tag
	stateLSA localstore.Addr
}

func (*FilterLoad) Kind() Kind { return KindFilterLoad }

func (h *Handler) filterLoad(cmd *FilterLoad) Result {
	filt := cmd.Filter

	for {
		switch cmd.Stage {
		case stageInit:
			check.Pre(localstore.Aligned(uint64(filt.Addr)) &&
				(cmd.Desc.StateSize == 0 ||
					(localstore.Aligned(uint64(cmd.Desc.StateSize)) && localstore.Aligned(cmd.Desc.StateAddr))),
				"filter_load misaligned: filter=%#x state_size=%d state_addr=%#x",
				filt.Addr, cmd.Desc.StateSize, cmd.Desc.StateAddr)
			// Unloaded blocks stay busy; a reload needs a fresh block.
			check.Invariant(!filt.Busy(), "filter %#x is busy or was unloaded", filt.Addr)

			metrics.FilterLoadStarted(h.env.Metrics)

			filt.Install(cmd.Desc)
			if check.Enabled {
				filt.ResetTapes(h.sentinel())
				filt.ResetAttached()
			}

			if cmd.Desc.StateSize == 0 {
				return h.complete(cmd)
			}

			filt.SetBusy(true)
			cmd.stateLSA = filt.StateAddr()
			cmd.Tag = h.reserveTag()
			cmd.Stage = stageCopy

		case stageCopy:
			if r, wait := h.copyPiece(&cmd.header, dma.Get, cmd.Tag,
				cursor{lsa: &cmd.stateLSA, ea: &cmd.Desc.StateAddr, remaining: &cmd.Desc.StateSize}); wait {
				return r
			}

		case stageCopyDone:
			h.env.DMA.ReleaseTag(cmd.Tag)
			filt.SetBusy(false)
			return h.complete(cmd)

		default:
			badStage(cmd)
		}
	}
}

// FilterUnload writes a filter's persistent state back to shared memory and
// retires the block. The filter's own Desc.StateAddr and Desc.StateSize are
// the write cursor and are consumed by the unload.
//
// With DetachOnly set, the unload only resets the tape slots and leaves the
// state alone. DetachOnly is validation bookkeeping: builds without checks
// perform a full unload.
type FilterUnload struct {
	header
	Filter     *filter.CB
	DetachOnly bool

	Tag      dma.Tag
	stateLSA localstore.Addr
}

func (*FilterUnload) Kind() Kind { return KindFilterUnload }

func (h *Handler) filterUnload(cmd *FilterUnload) Result {
	filt := cmd.Filter

	for {
		switch cmd.Stage {
		case stageInit:
			check.Pre(localstore.Aligned(uint64(filt.Addr)), "filter_unload misaligned: filter=%#x", filt.Addr)
			check.Invariant(!filt.Busy(), "filter %#x is busy or was unloaded", filt.Addr)

			if check.Enabled {
				if cmd.DetachOnly {
					filt.ResetAttached()
					filt.ResetTapes(h.sentinel())
					return h.complete(cmd)
				}
				// Never cleared: an unloaded block is retired.
				filt.SetBusy(true)
			}

			metrics.FilterUnloadStarted(h.env.Metrics)

			if filt.Desc.StateSize == 0 {
				return h.complete(cmd)
			}

			cmd.stateLSA = filt.StateAddr()
			cmd.Tag = h.reserveTag()
			cmd.Stage = stageCopy

		case stageCopy:
			if r, wait := h.copyPiece(&cmd.header, dma.Put, cmd.Tag,
				cursor{lsa: &cmd.stateLSA, ea: &filt.Desc.StateAddr, remaining: &filt.Desc.StateSize}); wait {
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
