package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

func TestLoadData_SplitsIntoPieces(t *testing.T) {
	engine := newFakeEngine()
	f := newFixture(t, engine)
	cmd := &LoadData{Dest: 0x1000, Src: 0x20000, Bytes: 40000}

	var waits []Result
	for {
		res := f.handler.Run(cmd)
		if res.Done {
			break
		}
		waits = append(waits, res)
	}

	assert.Equal(t, []uint32{16384, 16384, 7232}, engine.sizes())
	require.Len(t, waits, 3)
	for _, w := range waits {
		assert.Equal(t, WaitTag, w.Wait)
		assert.Equal(t, dma.Tag(3), w.Tag)
	}

	// Addresses advance piece by piece.
	assert.Equal(t, localstore.Addr(0x1000+16384), engine.pieces[1].lsa)
	assert.Equal(t, uint64(0x20000+2*16384), engine.pieces[2].ea)
	for _, p := range engine.pieces {
		assert.Equal(t, dma.Get, p.dir)
		assert.LessOrEqual(t, p.size, uint32(dma.MaxTransferSize))
	}

	assert.Equal(t, 1, engine.reserved)
	assert.Equal(t, 1, engine.released)
	assert.Len(t, f.deps.completed, 1)
}

func TestLoadData_PieceSums(t *testing.T) {
	for _, n := range []uint32{16, 16384, 16400, 32768, 100000} {
		engine := newFakeEngine()
		f := newFixture(t, engine)
		f.runToCompletion(t, &LoadData{Dest: 0x1000, Src: 0, Bytes: n})

		var sum uint32
		for _, s := range engine.sizes() {
			assert.LessOrEqual(t, s, engine.max)
			sum += s
		}
		assert.Equal(t, n, sum, "bytes %d", n)
		assert.Equal(t, 1, engine.released)
	}
}

func TestLoadData_ZeroLength(t *testing.T) {
	engine := newFakeEngine()
	f := newFixture(t, engine)

	res := f.handler.Run(&LoadData{Dest: 0x1000, Src: 0x2000})

	assert.True(t, res.Done, "completes in the first invocation")
	assert.Empty(t, engine.pieces)
	assert.Equal(t, 1, engine.reserved)
	assert.Equal(t, 1, engine.released)
	assert.Len(t, f.deps.completed, 1)
}

func TestLoadData_WaitsForSlot(t *testing.T) {
	engine := newFakeEngine()
	engine.noSlot = true
	f := newFixture(t, engine)
	cmd := &LoadData{Dest: 0x1000, Src: 0x2000, Bytes: 64}

	res := f.handler.Run(cmd)
	assert.Equal(t, WaitSlot, res.Wait)
	assert.Equal(t, stageCopy, cmd.Progress())
	assert.Empty(t, engine.pieces)

	res = f.handler.Run(cmd)
	assert.Equal(t, WaitSlot, res.Wait, "still no slot")

	engine.noSlot = false
	res = f.handler.Run(cmd)
	assert.Equal(t, WaitTag, res.Wait)
	assert.Equal(t, []uint32{64}, engine.sizes())
	assert.Equal(t, 1, engine.reserved, "tag is reserved once")

	assert.True(t, f.handler.Run(cmd).Done)
}

func TestLoadData_Misaligned(t *testing.T) {
	tests := []struct {
		name string
		cmd  *LoadData
	}{
		{"dest", &LoadData{Dest: 0x1004, Src: 0, Bytes: 16}},
		{"src", &LoadData{Dest: 0x1000, Src: 0x8, Bytes: 16}},
		{"bytes", &LoadData{Dest: 0x1000, Src: 0, Bytes: 17}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			f := newFixture(t, engine)
			expectFault(t, check.ErrPrecondition, func() { f.handler.Run(tt.cmd) })
			assert.Zero(t, engine.reserved)
			assert.Empty(t, f.deps.completed)
		})
	}
}

func TestLoadData_StageNeverDecreases(t *testing.T) {
	engine := newFakeEngine()
	f := newFixture(t, engine)
	cmd := &LoadData{Dest: 0x1000, Src: 0, Bytes: 50000}

	prev := cmd.Progress()
	for !f.handler.Run(cmd).Done {
		assert.GreaterOrEqual(t, cmd.Progress(), prev)
		prev = cmd.Progress()
	}
}

func TestLoadData_ThroughController(t *testing.T) {
	f, ctrl, mem := newController(t)
	src := make([]byte, 40000)
	for i := range src {
		src[i] = byte(i * 7)
	}
	require.NoError(t, mem.WriteAt(t.Context(), src, 0x30000))

	n := drive(t, f.handler, ctrl, &LoadData{Dest: 0x1000, Src: 0x30000, Bytes: 40000})

	assert.Equal(t, 4, n, "three pieces plus the release")
	assert.Equal(t, src, f.ls.Bytes(0x1000, 40000))
	assert.Equal(t, 0, ctrl.Outstanding())
}

func TestCallFunc(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	called := 0

	res := f.handler.Run(&CallFunc{Func: func() { called++ }})

	assert.True(t, res.Done)
	assert.Equal(t, 1, called)
	require.Len(t, f.deps.completed, 1)
	assert.Equal(t, KindCallFunc, f.deps.completed[0].Kind())

	expectFault(t, check.ErrPrecondition, func() { f.handler.Run(&CallFunc{}) })
}

func TestHandler_InvalidStage(t *testing.T) {
	f := newFixture(t, newFakeEngine())
	cmd := &LoadData{Dest: 0x1000, Bytes: 16}
	cmd.Stage = 7

	expectFault(t, check.ErrInvariant, func() { f.handler.Run(cmd) })
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "filter_run", KindFilterRun.String())
	assert.Equal(t, "attach_input", (&FilterAttachInput{}).Kind().String())
	assert.Equal(t, "unknown", Kind(99).String())
}
