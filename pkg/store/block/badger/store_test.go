package badger_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/store/block"
	"github.com/yxiaowhut/streamit/pkg/store/block/badger"
	"github.com/yxiaowhut/streamit/pkg/store/block/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) block.Store {
		s, err := badger.New(badger.Config{Path: filepath.Join(t.TempDir(), "pages")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestConformance_InMemory(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) block.Store {
		s, err := badger.New(badger.Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := badger.New(badger.Config{})
	assert.Error(t, err)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	ctx := t.Context()

	s, err := badger.New(badger.Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.WriteBlock(ctx, "ea/page-000000000000", []byte("state")))
	require.NoError(t, s.Close())

	s, err = badger.New(badger.Config{Path: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.ReadBlock(ctx, "ea/page-000000000000")
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), got)
}

func TestStore_HealthCheckAfterClose(t *testing.T) {
	s, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.HealthCheck(t.Context()), block.ErrStoreClosed)
}
