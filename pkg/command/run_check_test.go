//go:build !nocheck

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/filter"
)

func TestFilterRun_RequiresAllTapesAttached(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 2, NumOutputs: 1, Work: nopWork})
	in := f.newBuffer(t, 64)
	out := f.newBuffer(t, 64)

	f.handler.Run(&FilterAttachInput{Filter: filt, Tape: 0, Buffer: in.Handle})
	f.handler.Run(&FilterAttachOutput{Filter: filt, Tape: 0, Buffer: out.Handle})

	expectFault(t, check.ErrInvariant, func() {
		f.handler.Run(&FilterRun{Filter: filt, Iters: 1, LoopIters: 1})
	})
}

func TestFilterRun_ClaimsAndReleasesTapes(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 1, NumOutputs: 1, Work: nopWork})
	in := f.newBuffer(t, 64)
	out := f.newBuffer(t, 64)
	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: in.Handle})
	f.handler.Run(&FilterAttachOutput{Filter: filt, Buffer: out.Handle})

	cmd := &FilterRun{Filter: filt, Iters: 2, LoopIters: 1}
	assert.Equal(t, WaitYield, f.handler.Run(cmd).Wait)
	assert.True(t, filt.Busy())
	assert.Equal(t, buffer.ActionRun, in.FrontAction())
	assert.Equal(t, buffer.ActionRun, out.BackAction())
	assert.Equal(t, buffer.ActionNone, in.BackAction())

	assert.True(t, f.handler.Run(cmd).Done)
	assert.False(t, filt.Busy())
	assert.Equal(t, buffer.ActionNone, in.FrontAction())
	assert.Equal(t, buffer.ActionNone, out.BackAction())
}

func TestFilterRun_TapeDrivenTwice(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	shared := f.newBuffer(t, 64)
	first := f.load(t, filter.Desc{NumInputs: 1, Work: nopWork})
	second := f.load(t, filter.Desc{NumInputs: 1, Work: nopWork})
	f.handler.Run(&FilterAttachInput{Filter: first, Buffer: shared.Handle})
	f.handler.Run(&FilterAttachInput{Filter: second, Buffer: shared.Handle})

	assert.Equal(t, WaitYield, f.handler.Run(&FilterRun{Filter: first, Iters: 4, LoopIters: 2}).Wait)
	expectFault(t, check.ErrInvariant, func() {
		f.handler.Run(&FilterRun{Filter: second, Iters: 4, LoopIters: 2})
	})
}

func TestFilterRun_SnapshotsOffsets(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	in := f.newBuffer(t, 64)
	out := f.newBuffer(t, 64)
	in.Push32(1)
	in.Push32(2)
	move := func(_, _ []byte, inputs, outputs []*buffer.CB, iters uint32) {
		for range iters {
			v, _ := inputs[0].Pop32()
			outputs[0].Push32(v)
		}
	}
	filt := f.load(t, filter.Desc{NumInputs: 1, NumOutputs: 1, Work: move})
	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: in.Handle})
	f.handler.Run(&FilterAttachOutput{Filter: filt, Buffer: out.Handle})

	f.handler.Run(&FilterRun{Filter: filt, Iters: 2, LoopIters: 1})
	assert.Equal(t, uint32(4), in.IHead())
	assert.Equal(t, uint32(4), out.OTail())
}
