package command

import (
	"time"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/metrics"
)

// FilterRun executes Iters iterations of Filter's work routine, at most
// LoopIters per invocation, yielding between batches. Iters counts down.
type FilterRun struct {
	header
	Filter    *filter.CB
	Iters     uint32
	LoopIters uint32
}

func (*FilterRun) Kind() Kind { return KindFilterRun }

func (h *Handler) filterRun(cmd *FilterRun) Result {
	filt := cmd.Filter

	for {
		switch cmd.Stage {
		case stageInit:
			check.Pre(localstore.Aligned(uint64(filt.Addr)) && cmd.LoopIters != 0,
				"filter_run: filter=%#x loop_iters=%d", filt.Addr, cmd.LoopIters)
			check.Pre(filt.Desc.Work != nil, "filter_run: filter %#x has no work routine", filt.Addr)
			if check.Enabled {
				claimTapes(filt)
			}
			cmd.Stage = stageRun

		case stageRun:
			batch := min(cmd.Iters, cmd.LoopIters)
			cmd.Iters -= batch

			start := time.Now()
			filt.Desc.Work(filt.Desc.Param, filt.State(), filt.Inputs, filt.Outputs, batch)
			metrics.ObserveWork(h.env.Metrics, batch, time.Since(start))

			if check.Enabled {
				for _, b := range filt.Inputs {
					b.SnapshotHead()
				}
				for _, b := range filt.Outputs {
					b.SnapshotTail()
				}
			}

			if cmd.Iters != 0 {
				return waitYield
			}

			if check.Enabled {
				releaseTapes(filt)
			}
			r := h.complete(cmd)
			metrics.FilterRunDone(h.env.Metrics)
			return r

		default:
			badStage(cmd)
		}
	}
}

// claimTapes marks filt running and takes the run action on every tape.
func claimTapes(filt *filter.CB) {
	check.Invariant(!filt.Busy(), "filter_run: filter %#x is busy or was unloaded", filt.Addr)
	filt.SetBusy(true)

	check.Invariant(filt.AttachedInputs() == int(filt.Desc.NumInputs) &&
		filt.AttachedOutputs() == int(filt.Desc.NumOutputs),
		"filter_run: filter %#x has %d/%d inputs and %d/%d outputs attached", filt.Addr,
		filt.AttachedInputs(), filt.Desc.NumInputs, filt.AttachedOutputs(), filt.Desc.NumOutputs)

	for i, b := range filt.Inputs {
		check.Invariant(b.FrontAction() == buffer.ActionNone,
			"filter_run: input %d (buffer %#x) already driven", i, uint32(b.Handle))
		b.SetFrontAction(buffer.ActionRun)
	}
	for i, b := range filt.Outputs {
		check.Invariant(b.BackAction() == buffer.ActionNone,
			"filter_run: output %d (buffer %#x) already driven", i, uint32(b.Handle))
		b.SetBackAction(buffer.ActionRun)
	}
}

func releaseTapes(filt *filter.CB) {
	filt.SetBusy(false)
	for _, b := range filt.Inputs {
		b.SetFrontAction(buffer.ActionNone)
	}
	for _, b := range filt.Outputs {
		b.SetBackAction(buffer.ActionNone)
	}
}
