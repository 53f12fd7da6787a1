package shared

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/bufpool"
	"github.com/yxiaowhut/streamit/pkg/store/block/memory"
)

func newTestMemory(t *testing.T, pageSize uint32) (*Paged, *memory.Store) {
	t.Helper()
	store := memory.New()
	m, err := NewPaged(store, pageSize)
	require.NoError(t, err)
	return m, store
}

func TestNewPaged_RejectsBadPageSize(t *testing.T) {
	for _, size := range []uint32{0, 8, 48, 1000} {
		_, err := NewPaged(memory.New(), size)
		assert.Error(t, err, "page size %d", size)
	}
}

func TestPaged_UnwrittenReadsZero(t *testing.T) {
	m, _ := newTestMemory(t, 64)

	buf := bytes.Repeat([]byte{0xFF}, 100)
	require.NoError(t, m.ReadAt(t.Context(), buf, 0x1000))
	assert.Equal(t, make([]byte, 100), buf)
}

func TestPaged_CrossPageRoundTrip(t *testing.T) {
	m, store := newTestMemory(t, 64)
	ctx := t.Context()

	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, m.WriteAt(ctx, data, 48))

	// [48, 248) touches pages 0..3.
	assert.Equal(t, 4, store.Len())

	got := make([]byte, 200)
	require.NoError(t, m.ReadAt(ctx, got, 48))
	assert.Equal(t, data, got)

	head := make([]byte, 48)
	require.NoError(t, m.ReadAt(ctx, head, 0))
	assert.Equal(t, make([]byte, 48), head, "bytes before the write stay zero")
}

func TestPaged_PartialWritePreservesNeighbours(t *testing.T) {
	m, _ := newTestMemory(t, 64)
	ctx := t.Context()

	require.NoError(t, m.WriteAt(ctx, bytes.Repeat([]byte{0xAA}, 64), 0))
	require.NoError(t, m.WriteAt(ctx, []byte{1, 2, 3, 4}, 16))

	got := make([]byte, 64)
	require.NoError(t, m.ReadAt(ctx, got, 0))

	want := bytes.Repeat([]byte{0xAA}, 64)
	copy(want[16:], []byte{1, 2, 3, 4})
	assert.Equal(t, want, got)
}

func TestPaged_PagesAndReset(t *testing.T) {
	m, _ := newTestMemory(t, 64)
	ctx := t.Context()

	require.NoError(t, m.WriteAt(ctx, []byte{1}, 0))
	require.NoError(t, m.WriteAt(ctx, []byte{1}, 640))

	n, err := m.Pages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, m.Reset(ctx))
	n, err = m.Pages(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPaged_Overflow(t *testing.T) {
	m, _ := newTestMemory(t, 64)
	assert.Error(t, m.WriteAt(t.Context(), make([]byte, 32), ^uint64(0)-15))
}

func TestPaged_ConcurrentDisjointWrites(t *testing.T) {
	m, _ := newTestMemory(t, 64)
	ctx := t.Context()

	// 16-byte writes sharing pages must not clobber each other.
	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.WriteAt(ctx, bytes.Repeat([]byte{byte(i + 1)}, 16), uint64(i*16)))
		}(i)
	}
	wg.Wait()

	got := make([]byte, writers*16)
	require.NoError(t, m.ReadAt(ctx, got, 0))
	for i := 0; i < writers; i++ {
		assert.Equal(t, bytes.Repeat([]byte{byte(i + 1)}, 16), got[i*16:(i+1)*16], "slot %d", i)
	}
}

func TestPaged_WithPoolStagesThroughIt(t *testing.T) {
	pool := bufpool.NewPool(&bufpool.Config{Sizes: []int{256}})
	m, err := NewPaged(memory.New(), 256, WithPool(pool))
	require.NoError(t, err)
	assert.Same(t, pool, m.pool)

	data := bytes.Repeat([]byte{7}, 32)
	require.NoError(t, m.WriteAt(t.Context(), data, 0x110))
	got := make([]byte, 32)
	require.NoError(t, m.ReadAt(t.Context(), got, 0x110))
	assert.Equal(t, data, got)
}
