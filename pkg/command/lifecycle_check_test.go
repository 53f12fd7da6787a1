//go:build !nocheck

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/filter"
)

func TestFilterLoad_ResetsTapes(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 2, NumOutputs: 1, Work: nopWork})

	for _, b := range append(filt.Inputs, filt.Outputs...) {
		assert.Same(t, f.buffers.Sentinel(), b)
	}
	assert.Zero(t, filt.AttachedInputs())
	assert.False(t, filt.Busy())
}

func TestFilterLoad_BusyWhileStaging(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	desc := filter.Desc{StateSize: 16, StateAddr: 0x1000, Work: nopWork}
	filt := f.newFilter(t, desc)
	cmd := &FilterLoad{Filter: filt, Desc: desc}

	assert.False(t, f.handler.Run(cmd).Done)
	assert.True(t, filt.Busy())
	assert.True(t, f.handler.Run(cmd).Done)
	assert.False(t, filt.Busy())
}

func TestFilterUnload_IsTerminal(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	desc := filter.Desc{Work: nopWork}
	filt := f.load(t, desc)
	f.runToCompletion(t, &FilterUnload{Filter: filt})
	assert.True(t, filt.Busy())

	expectFault(t, check.ErrInvariant, func() { f.handler.Run(&FilterLoad{Filter: filt, Desc: desc}) })
	expectFault(t, check.ErrInvariant, func() { f.handler.Run(&FilterUnload{Filter: filt}) })
	expectFault(t, check.ErrInvariant, func() {
		f.handler.Run(&FilterRun{Filter: filt, Iters: 1, LoopIters: 1})
	})
}

func TestFilterLoad_RefusedReloadLeavesBlockAlone(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 1, Work: nopWork})
	f.runToCompletion(t, &FilterUnload{Filter: filt})

	expectFault(t, check.ErrInvariant, func() {
		f.handler.Run(&FilterLoad{Filter: filt, Desc: filter.Desc{NumInputs: 2, Work: nopWork}})
	})
	assert.True(t, filt.Busy(), "still terminal")
	assert.EqualValues(t, 1, filt.Desc.NumInputs, "descriptor not reinstalled")
}

func TestFilterUnload_DetachOnly(t *testing.T) {
	engine := newFakeEngine()
	f := newFixture(t, engine)
	filt := f.load(t, filter.Desc{NumInputs: 1, NumOutputs: 1, StateSize: 32, StateAddr: 0x1000, Work: nopWork})
	engine.pieces = nil
	in := f.newBuffer(t, 64)
	out := f.newBuffer(t, 64)
	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: in.Handle})
	f.handler.Run(&FilterAttachOutput{Filter: filt, Buffer: out.Handle})

	res := f.handler.Run(&FilterUnload{Filter: filt, DetachOnly: true})

	assert.True(t, res.Done)
	assert.Empty(t, engine.pieces, "state is left alone")
	assert.Same(t, f.buffers.Sentinel(), filt.Inputs[0])
	assert.Same(t, f.buffers.Sentinel(), filt.Outputs[0])
	assert.Equal(t, buffer.None, filt.Slot(0))
	assert.Zero(t, filt.AttachedInputs())
	assert.Zero(t, filt.AttachedOutputs())
	assert.False(t, filt.Busy(), "a detached filter can be re-attached")
}

func TestFilterLoad_TagPoolExhausted(t *testing.T) {
	engine := newFakeEngine()
	engine.exhausted = true
	f := newFixture(t, engine)
	desc := filter.Desc{StateSize: 16, StateAddr: 0x1000, Work: nopWork}

	expectFault(t, check.ErrInvariant, func() {
		f.handler.Run(&FilterLoad{Filter: f.newFilter(t, desc), Desc: desc})
	})
}
