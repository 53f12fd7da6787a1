package command

import (
	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// FilterAttachInput binds input Tape of Filter to the consuming end of
// Buffer. Whatever the slot held before is replaced; buffer.None detaches,
// and detaching an unattached slot is allowed.
type FilterAttachInput struct {
	header
	Filter *filter.CB
	Tape   uint8
	Buffer buffer.Handle
}

func (*FilterAttachInput) Kind() Kind { return KindFilterAttachInput }

// FilterAttachOutput binds output Tape of Filter to the producing end of
// Buffer, with the same replace and detach rules as FilterAttachInput.
type FilterAttachOutput struct {
	header
	Filter *filter.CB
	Tape   uint8
	Buffer buffer.Handle
}

func (*FilterAttachOutput) Kind() Kind { return KindFilterAttachOutput }

func (h *Handler) attachInput(cmd *FilterAttachInput) Result {
	filt := cmd.Filter
	h.checkAttach(cmd, filt, cmd.Tape, filt.Desc.NumInputs, cmd.Buffer)

	if check.Enabled {
		if filt.Inputs[cmd.Tape] == h.sentinel() {
			filt.AdjustAttachedInputs(1)
		}
		if cmd.Buffer == buffer.None {
			filt.AdjustAttachedInputs(-1)
		}
	}

	filt.SetInput(int(cmd.Tape), h.env.Buffers.Lookup(cmd.Buffer))
	return h.complete(cmd)
}

func (h *Handler) attachOutput(cmd *FilterAttachOutput) Result {
	filt := cmd.Filter
	h.checkAttach(cmd, filt, cmd.Tape, filt.Desc.NumOutputs, cmd.Buffer)

	if check.Enabled {
		if filt.Outputs[cmd.Tape] == h.sentinel() {
			filt.AdjustAttachedOutputs(1)
		}
		if cmd.Buffer == buffer.None {
			filt.AdjustAttachedOutputs(-1)
		}
	}

	filt.SetOutput(int(cmd.Tape), h.env.Buffers.Lookup(cmd.Buffer))
	return h.complete(cmd)
}

func (h *Handler) checkAttach(cmd Command, filt *filter.CB, tape, count uint8, buf buffer.Handle) {
	if cmd.Progress() != stageInit {
		badStage(cmd)
	}
	check.Pre(localstore.Aligned(uint64(filt.Addr)) && tape < count && localstore.Aligned(uint64(buf)),
		"%s: filter=%#x tape=%d of %d buffer=%#x", cmd.Kind(), filt.Addr, tape, count, uint32(buf))
	check.Invariant(!filt.Busy(), "%s: filter %#x is busy", cmd.Kind(), filt.Addr)
}
