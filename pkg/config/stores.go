package config

import (
	"context"
	"fmt"
	"os"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/pkg/bufpool"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/metrics"
	"github.com/yxiaowhut/streamit/pkg/shared"
	"github.com/yxiaowhut/streamit/pkg/spu"
	"github.com/yxiaowhut/streamit/pkg/store/block"
	blockbadger "github.com/yxiaowhut/streamit/pkg/store/block/badger"
	blockfs "github.com/yxiaowhut/streamit/pkg/store/block/fs"
	blockmemory "github.com/yxiaowhut/streamit/pkg/store/block/memory"
	blocks3 "github.com/yxiaowhut/streamit/pkg/store/block/s3"
)

// Shared memory backends.
const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendBadger     = "badger"
	BackendS3         = "s3"
)

// CreateBlockStore opens the configured backend. A non-nil m wraps the store
// so every operation is counted under the backend name.
func CreateBlockStore(ctx context.Context, cfg SharedConfig, m metrics.StoreMetrics) (block.Store, error) {
	var (
		store block.Store
		err   error
	)

	switch cfg.Backend {
	case BackendMemory, "":
		store = blockmemory.New()
	case BackendFilesystem:
		fsCfg := blockfs.DefaultConfig(cfg.Filesystem.Path)
		fsCfg.FileMode = os.FileMode(0600)
		store, err = blockfs.New(fsCfg)
	case BackendBadger:
		store, err = blockbadger.New(blockbadger.Config{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
		})
	case BackendS3:
		store, err = blocks3.NewFromConfig(ctx, blocks3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			MaxRetries:      cfg.S3.MaxRetries,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown shared memory backend: %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Backend, err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store health check failed: %w", cfg.Backend, err)
	}

	logger.Debug("Shared memory store ready", "backend", cfg.Backend, "page_size", cfg.PageSize.String())
	return block.Instrument(store, cfg.Backend, m), nil
}

// CreateBufferPool builds the staging pool shared by the transfer
// controller and the paged memory: one tier for small pieces, one for full
// pieces and one for pages.
func CreateBufferPool(cfg *Config) *bufpool.Pool {
	return bufpool.NewPool(&bufpool.Config{Sizes: []int{
		bufpool.DefaultSmallSize,
		int(cfg.Core.MaxTransferSize),
		int(cfg.Shared.PageSize),
	}})
}

// CreateSharedMemory maps the EA space onto store. Pages are staged
// through pool; nil gives the memory a private pool.
func CreateSharedMemory(store block.Store, cfg SharedConfig, pool *bufpool.Pool) (*shared.Paged, error) {
	pageSize, err := cfg.PageSize.Uint32()
	if err != nil {
		return nil, fmt.Errorf("shared.page_size: %w", err)
	}
	opts := []shared.Option{shared.WithPrefix(cfg.KeyPrefix)}
	if pool != nil {
		opts = append(opts, shared.WithPool(pool))
	}
	return shared.NewPaged(store, pageSize, opts...)
}

// DMAConfig converts the core section into controller settings.
func (c CoreConfig) DMAConfig() dma.Config {
	return dma.Config{
		Tags:            c.Tags,
		Slots:           c.Slots,
		MaxTransferSize: uint32(c.MaxTransferSize),
	}
}

// SPUOptions builds core options over mem, staging pieces through pool.
// Sizes must already be validated.
func (c CoreConfig) SPUOptions(mem shared.Memory, m metrics.CoreMetrics, pool *bufpool.Pool) spu.Options {
	dmaCfg := c.DMAConfig()
	dmaCfg.Pool = pool
	return spu.Options{
		LocalStoreSize: uint32(c.LocalStoreSize),
		DMA:            dmaCfg,
		Memory:         mem,
		Metrics:        m,
		DrainTimeout:   c.DrainTimeout,
	}
}
