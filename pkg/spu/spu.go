// Package spu assembles one processing core: its local store, the transfer
// controller to shared memory, the buffer registry and the dispatcher.
package spu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/dispatch"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/metrics"
	"github.com/yxiaowhut/streamit/pkg/shared"
)

// Options configures a core.
type Options struct {
	// LocalStoreSize in bytes. Default: localstore.DefaultSize
	LocalStoreSize uint32

	DMA dma.Config

	// Memory is the shared address space. Required.
	Memory shared.Memory

	// Metrics may be nil.
	Metrics metrics.CoreMetrics

	// DrainTimeout bounds the wait for transfers when a run stops early.
	DrainTimeout time.Duration
}

// SPU is a single core ready to run commands.
type SPU struct {
	LS         *localstore.Store
	Arena      *localstore.Arena
	DMA        *dma.Controller
	Buffers    *buffer.Registry
	Dispatcher *dispatch.Dispatcher
	Memory     shared.Memory
}

// New creates a core.
func New(opts Options) (*SPU, error) {
	if opts.Memory == nil {
		return nil, errors.New("shared memory is required")
	}
	if opts.LocalStoreSize == 0 {
		opts.LocalStoreSize = localstore.DefaultSize
	}

	ls, err := localstore.New(opts.LocalStoreSize)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	ctrl, err := dma.New(ls, opts.Memory, opts.DMA, opts.Metrics)
	if err != nil {
		return nil, fmt.Errorf("create transfer controller: %w", err)
	}
	buffers := buffer.NewRegistry()

	cfg := ctrl.Config()
	logger.Debug("Core created", "local_store", opts.LocalStoreSize, "tags", cfg.Tags, "slots", cfg.Slots,
		"max_transfer", cfg.MaxTransferSize)

	return &SPU{
		LS:         ls,
		Arena:      localstore.NewArena(ls),
		DMA:        ctrl,
		Buffers:    buffers,
		Dispatcher: dispatch.New(ctrl, buffers, opts.Metrics, dispatch.Config{DrainTimeout: opts.DrainTimeout}),
		Memory:     opts.Memory,
	}, nil
}

// NewBuffer allocates and registers a buffer of size bytes. Its handle is
// its LS address.
func (s *SPU) NewBuffer(size uint32) (*buffer.CB, error) {
	addr, err := s.Arena.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("allocate buffer: %w", err)
	}
	b, err := buffer.New(buffer.Handle(addr), s.LS.Bytes(addr, size))
	if err != nil {
		return nil, err
	}
	s.Buffers.Register(b)
	return b, nil
}

// NewFilter allocates a control block large enough for desc. The block is
// empty until a FilterLoad installs desc.
func (s *SPU) NewFilter(desc filter.Desc) (*filter.CB, error) {
	addr, err := s.Arena.Alloc(filter.Size(desc))
	if err != nil {
		return nil, fmt.Errorf("allocate filter: %w", err)
	}
	return filter.New(s.LS, addr), nil
}

// Alloc reserves an aligned LS region for data loads.
func (s *SPU) Alloc(size uint32) (localstore.Addr, error) {
	return s.Arena.Alloc(size)
}

// Run drives every submitted command to completion.
func (s *SPU) Run(ctx context.Context) error {
	return s.Dispatcher.Run(ctx)
}

// Close waits for outstanding transfers and stops the controller.
func (s *SPU) Close(ctx context.Context) error {
	return s.DMA.Close(ctx)
}
