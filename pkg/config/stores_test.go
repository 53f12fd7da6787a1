package config

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"github.com/yxiaowhut/streamit/pkg/store/block/memory"
)

func TestCreateBufferPool_SharedByMemoryAndCore(t *testing.T) {
	cfg := GetDefaultConfig()

	pool := CreateBufferPool(cfg)
	want := []int{1 << 10, 16 << 10, 64 << 10}
	if got := pool.Sizes(); !slices.Equal(got, want) {
		t.Fatalf("Expected tiers %v, got %v", want, got)
	}

	mem, err := CreateSharedMemory(memory.New(), cfg.Shared, pool)
	if err != nil {
		t.Fatalf("CreateSharedMemory failed: %v", err)
	}
	ctx := context.Background()
	data := bytes.Repeat([]byte{0xAB}, 48)
	if err := mem.WriteAt(ctx, data, 0x10010); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	got := make([]byte, 48)
	if err := mem.ReadAt(ctx, got, 0x10010); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected written bytes back, got %x", got)
	}

	opts := cfg.Core.SPUOptions(mem, nil, pool)
	if opts.DMA.Pool != pool {
		t.Error("Expected the core to stage pieces through the shared pool")
	}
	if opts.Memory != mem {
		t.Error("Expected the core to use the shared memory")
	}
}

func TestCreateSharedMemory_NilPool(t *testing.T) {
	cfg := GetDefaultConfig()
	mem, err := CreateSharedMemory(memory.New(), cfg.Shared, nil)
	if err != nil {
		t.Fatalf("CreateSharedMemory failed: %v", err)
	}
	if mem.PageSize() != uint32(cfg.Shared.PageSize) {
		t.Errorf("Expected page size %d, got %d", cfg.Shared.PageSize, mem.PageSize())
	}
}
