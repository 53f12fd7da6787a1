// Package storetest holds the behavioural suite every block.Store backend
// must pass.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// StoreFactory creates a fresh store for each subtest. It should register
// its own cleanup with t.Cleanup.
type StoreFactory func(t *testing.T) block.Store

// RunConformanceSuite runs the suite against the stores produced by factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("WriteAndRead", func(t *testing.T) { testWriteAndRead(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, factory(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory(t)) })
	t.Run("ListAndDeleteByPrefix", func(t *testing.T) { testPrefixes(t, factory(t)) })
	t.Run("HealthCheck", func(t *testing.T) { testHealthCheck(t, factory(t)) })
}

func testWriteAndRead(t *testing.T, s block.Store) {
	ctx := t.Context()

	require.NoError(t, s.WriteBlock(ctx, "ea/page-000000000001", []byte("hello page")))

	got, err := s.ReadBlock(ctx, "ea/page-000000000001")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello page"), got)
}

func testOverwrite(t *testing.T, s block.Store) {
	ctx := t.Context()

	require.NoError(t, s.WriteBlock(ctx, "ea/page-000000000002", []byte("first")))
	require.NoError(t, s.WriteBlock(ctx, "ea/page-000000000002", []byte("second")))

	got, err := s.ReadBlock(ctx, "ea/page-000000000002")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func testReadMissing(t *testing.T, s block.Store) {
	_, err := s.ReadBlock(t.Context(), "ea/page-00000000ffff")
	assert.ErrorIs(t, err, block.ErrBlockNotFound)
}

func testDelete(t *testing.T, s block.Store) {
	ctx := t.Context()

	require.NoError(t, s.WriteBlock(ctx, "ea/page-000000000003", []byte("x")))
	require.NoError(t, s.DeleteBlock(ctx, "ea/page-000000000003"))

	_, err := s.ReadBlock(ctx, "ea/page-000000000003")
	assert.ErrorIs(t, err, block.ErrBlockNotFound)

	assert.NoError(t, s.DeleteBlock(ctx, "ea/page-000000000003"), "deleting a missing key is not an error")
}

func testPrefixes(t *testing.T, s block.Store) {
	ctx := t.Context()

	for _, key := range []string{"ea/page-000000000001", "ea/page-000000000000", "other/page-000000000000"} {
		require.NoError(t, s.WriteBlock(ctx, key, []byte(key)))
	}

	keys, err := s.ListByPrefix(ctx, "ea/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ea/page-000000000000", "ea/page-000000000001"}, keys)

	keys, err = s.ListByPrefix(ctx, "ea/page-0000000000")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	keys, err = s.ListByPrefix(ctx, "missing/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.DeleteByPrefix(ctx, "ea/"))

	keys, err = s.ListByPrefix(ctx, "ea/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	got, err := s.ReadBlock(ctx, "other/page-000000000000")
	require.NoError(t, err)
	assert.Equal(t, []byte("other/page-000000000000"), got)
}

func testHealthCheck(t *testing.T, s block.Store) {
	assert.NoError(t, s.HealthCheck(t.Context()))
}
