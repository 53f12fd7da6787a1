package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/store/block"
	"github.com/yxiaowhut/streamit/pkg/store/block/memory"
	"github.com/yxiaowhut/streamit/pkg/store/block/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) block.Store {
		s := memory.New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := memory.New()
	ctx := t.Context()

	data := []byte("abcd")
	require.NoError(t, s.WriteBlock(ctx, "k", data))
	data[0] = 'z'

	got, err := s.ReadBlock(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), got)

	got[1] = 'z'
	again, err := s.ReadBlock(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), again)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Closed(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())

	_, err := s.ReadBlock(t.Context(), "k")
	assert.ErrorIs(t, err, block.ErrStoreClosed)
	assert.ErrorIs(t, s.WriteBlock(t.Context(), "k", nil), block.ErrStoreClosed)
	assert.ErrorIs(t, s.HealthCheck(t.Context()), block.ErrStoreClosed)
}
