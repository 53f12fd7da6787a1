package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/shared"
	"github.com/yxiaowhut/streamit/pkg/store/block/memory"
)

// ============================================================================
// Fakes
// ============================================================================

type piece struct {
	dir  dma.Direction
	tag  dma.Tag
	lsa  localstore.Addr
	ea   uint64
	size uint32
}

// fakeEngine completes every piece instantly and records what was issued.
type fakeEngine struct {
	max       uint32
	noSlot    bool
	exhausted bool
	reserved  int
	released  int
	pieces    []piece
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{max: dma.MaxTransferSize}
}

func (e *fakeEngine) ReserveTag() dma.Tag {
	if e.exhausted {
		return dma.InvalidTag
	}
	e.reserved++
	return 3
}

func (e *fakeEngine) ReleaseTag(dma.Tag) { e.released++ }

func (e *fakeEngine) QueryAvail(int) bool { return !e.noSlot }

func (e *fakeEngine) TagIdle(dma.Tag) bool { return true }

func (e *fakeEngine) MaxTransferSize() uint32 { return e.max }

func (e *fakeEngine) Get(tag dma.Tag, lsa localstore.Addr, ea uint64, size uint32) {
	e.pieces = append(e.pieces, piece{dma.Get, tag, lsa, ea, size})
}

func (e *fakeEngine) Put(tag dma.Tag, lsa localstore.Addr, ea uint64, size uint32) {
	e.pieces = append(e.pieces, piece{dma.Put, tag, lsa, ea, size})
}

func (e *fakeEngine) sizes() []uint32 {
	out := make([]uint32, len(e.pieces))
	for i, p := range e.pieces {
		out[i] = p.size
	}
	return out
}

type recorder struct {
	completed []Command
}

func (r *recorder) Complete(cmd Command) {
	r.completed = append(r.completed, cmd)
}

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	ls      *localstore.Store
	arena   *localstore.Arena
	buffers *buffer.Registry
	deps    *recorder
	handler *Handler
}

func newFixture(t *testing.T, engine dma.Engine) *fixture {
	t.Helper()
	ls, err := localstore.New(localstore.DefaultSize)
	require.NoError(t, err)

	f := &fixture{
		ls:      ls,
		arena:   localstore.NewArena(ls),
		buffers: buffer.NewRegistry(),
		deps:    &recorder{},
	}
	f.handler = NewHandler(Env{DMA: engine, Buffers: f.buffers, Deps: f.deps})
	return f
}

// newController returns a fixture backed by a real controller over
// in-memory shared memory.
func newController(t *testing.T) (*fixture, *dma.Controller, *shared.Paged) {
	t.Helper()
	ls, err := localstore.New(localstore.DefaultSize)
	require.NoError(t, err)
	mem, err := shared.NewPaged(memory.New(), shared.DefaultPageSize)
	require.NoError(t, err)
	ctrl, err := dma.New(ls, mem, dma.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close(context.Background()) })

	f := &fixture{
		ls:      ls,
		arena:   localstore.NewArena(ls),
		buffers: buffer.NewRegistry(),
		deps:    &recorder{},
	}
	f.handler = NewHandler(Env{DMA: ctrl, Buffers: f.buffers, Deps: f.deps})
	return f, ctrl, mem
}

func (f *fixture) newFilter(t *testing.T, desc filter.Desc) *filter.CB {
	t.Helper()
	addr, err := f.arena.Alloc(filter.Size(desc))
	require.NoError(t, err)
	return filter.New(f.ls, addr)
}

func (f *fixture) newBuffer(t *testing.T, size uint32) *buffer.CB {
	t.Helper()
	addr, err := f.arena.Alloc(size)
	require.NoError(t, err)
	b, err := buffer.New(buffer.Handle(addr), f.ls.Bytes(addr, size))
	require.NoError(t, err)
	f.buffers.Register(b)
	return b
}

// load installs desc into a fresh filter. With the instant fake engine
// every wait is already satisfied, so the command is simply re-run.
func (f *fixture) load(t *testing.T, desc filter.Desc) *filter.CB {
	t.Helper()
	filt := f.newFilter(t, desc)
	f.runToCompletion(t, &FilterLoad{Filter: filt, Desc: desc})
	return filt
}

func (f *fixture) runToCompletion(t *testing.T, cmd Command) int {
	t.Helper()
	for n := 1; n < 10000; n++ {
		if f.handler.Run(cmd).Done {
			return n
		}
	}
	t.Fatalf("%s never completed", cmd.Kind())
	return 0
}

// drive runs cmd until it completes, waiting on ctrl the way the
// dispatcher does. It returns the number of invocations.
func drive(t *testing.T, h *Handler, ctrl *dma.Controller, cmd Command) int {
	t.Helper()
	deadline := time.After(5 * time.Second)

	for n := 1; ; n++ {
		res := h.Run(cmd)
		if res.Done {
			require.NoError(t, ctrl.Err())
			return n
		}
		for !ready(ctrl, res) {
			select {
			case <-ctrl.Notify():
			case <-deadline:
				t.Fatalf("%s stuck waiting on %s", cmd.Kind(), res.Wait)
			}
		}
	}
}

func ready(ctrl *dma.Controller, res Result) bool {
	switch res.Wait {
	case WaitSlot:
		return ctrl.QueryAvail(1)
	case WaitTag:
		return ctrl.TagIdle(res.Tag)
	default:
		return true
	}
}

func expectFault(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		f, ok := check.AsFault(recover())
		require.True(t, ok, "expected a check fault")
		assert.ErrorIs(t, f, want)
	}()
	fn()
}
