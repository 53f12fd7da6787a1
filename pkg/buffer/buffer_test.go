package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/check"
)

func TestNew_RejectsBadSize(t *testing.T) {
	for _, n := range []int{0, 8, 48, 100} {
		_, err := New(0x100, make([]byte, n))
		assert.Error(t, err, "size %d", n)
	}
	_, err := New(0x100, make([]byte, 64))
	assert.NoError(t, err)
}

func TestCB_PushPop(t *testing.T) {
	b, err := New(0x100, make([]byte, 16))
	require.NoError(t, err)

	for i := uint32(1); i <= 4; i++ {
		require.True(t, b.Push32(i))
	}
	assert.False(t, b.Push32(5), "ring is full")
	assert.Equal(t, uint32(0), b.Free())
	assert.Equal(t, 4, b.Words())

	v, ok := b.Peek32(2)
	require.True(t, ok)
	assert.Equal(t, uint32(3), v)

	for i := uint32(1); i <= 4; i++ {
		v, ok := b.Pop32()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = b.Pop32()
	assert.False(t, ok, "ring is empty")
}

func TestCB_WrapsAround(t *testing.T) {
	b, err := New(0x100, make([]byte, 16))
	require.NoError(t, err)

	// Keep the ring half full while the offsets run well past its size.
	for i := uint32(0); i < 100; i++ {
		require.True(t, b.Push32(i))
		require.True(t, b.Push32(i+1000))
		v, ok := b.Pop32()
		require.True(t, ok)
		assert.Equal(t, i, v)
		v, ok = b.Pop32()
		require.True(t, ok)
		assert.Equal(t, i+1000, v)
	}
	assert.Equal(t, uint32(800), b.Tail)
	assert.Equal(t, uint32(0), b.Len())
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	b, err := New(0x200, make([]byte, 32))
	require.NoError(t, err)
	r.Register(b)

	assert.Same(t, b, r.Lookup(0x200))
	assert.Same(t, r.Sentinel(), r.Lookup(None))
	assert.Equal(t, 1, r.Len())

	defer func() {
		f, ok := check.AsFault(recover())
		require.True(t, ok)
		assert.ErrorIs(t, f, check.ErrPrecondition)
	}()
	r.Lookup(0x300)
}

func TestRegistry_DuplicateHandle(t *testing.T) {
	r := NewRegistry()
	b, err := New(0x200, make([]byte, 32))
	require.NoError(t, err)
	r.Register(b)

	assert.Panics(t, func() { r.Register(b) })
}
