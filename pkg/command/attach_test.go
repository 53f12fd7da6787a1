package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/filter"
)

func TestFilterAttach_ReplaceAndDetach(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 1, NumOutputs: 1, Work: nopWork})
	a := f.newBuffer(t, 64)
	b := f.newBuffer(t, 64)

	assert.True(t, f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: a.Handle}).Done)
	assert.Same(t, a, filt.Inputs[0])

	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: b.Handle})
	assert.Same(t, b, filt.Inputs[0], "attaching replaces the previous buffer")
	assert.Equal(t, b.Handle, filt.Slot(0))

	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: buffer.None})
	assert.Same(t, f.buffers.Sentinel(), filt.Inputs[0])

	f.handler.Run(&FilterAttachInput{Filter: filt, Buffer: buffer.None})
	assert.Same(t, f.buffers.Sentinel(), filt.Inputs[0], "detaching twice is harmless")

	f.handler.Run(&FilterAttachOutput{Filter: filt, Buffer: a.Handle})
	assert.Same(t, a, filt.Outputs[0])
	assert.Equal(t, a.Handle, filt.Slot(1))

	assert.Len(t, f.deps.completed, 6)
}

func TestFilterAttach_Preconditions(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	filt := f.load(t, filter.Desc{NumInputs: 1, NumOutputs: 1, Work: nopWork})
	b := f.newBuffer(t, 64)

	tests := []struct {
		name string
		cmd  Command
	}{
		{"input tape out of range", &FilterAttachInput{Filter: filt, Tape: 1, Buffer: b.Handle}},
		{"output tape out of range", &FilterAttachOutput{Filter: filt, Tape: 3, Buffer: b.Handle}},
		{"misaligned handle", &FilterAttachInput{Filter: filt, Buffer: b.Handle + 4}},
		{"unknown handle", &FilterAttachOutput{Filter: filt, Buffer: 0x7ff0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectFault(t, check.ErrPrecondition, func() { f.handler.Run(tt.cmd) })
		})
	}
}
