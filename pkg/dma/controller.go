package dma

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/pkg/bufpool"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/metrics"
	"github.com/yxiaowhut/streamit/pkg/shared"
)

// Config holds configuration for the Controller.
type Config struct {
	// Tags is the size of the tag pool.
	// Default: 32
	Tags int

	// Slots is the number of pieces that may be in flight at once.
	// Default: 16
	Slots int

	// MaxTransferSize caps a single piece. Must be a quadword multiple no
	// larger than MaxTransferSize.
	// Default: 16KB
	MaxTransferSize uint32

	// Pool stages piece data. Shared with the paged memory when set; nil
	// gets a private pool sized for pieces.
	Pool *bufpool.Pool
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		Tags:            DefaultTags,
		Slots:           DefaultSlots,
		MaxTransferSize: MaxTransferSize,
	}
}

func (c *Config) applyDefaults() {
	if c.Tags <= 0 {
		c.Tags = DefaultTags
	}
	if c.Slots <= 0 {
		c.Slots = DefaultSlots
	}
	if c.MaxTransferSize == 0 {
		c.MaxTransferSize = MaxTransferSize
	}
}

// Controller executes transfer pieces on goroutines against a shared.Memory.
//
// The dispatcher thread issues pieces and polls completion; the goroutines
// only touch the pooled staging buffer, the target LS range and the
// controller's bookkeeping under mu. A failed piece is recorded and surfaces
// through Err; the piece still counts as finished so that tags drain.
type Controller struct {
	ls      *localstore.Store
	mem     shared.Memory
	cfg     Config
	pool    *bufpool.Pool
	metrics metrics.CoreMetrics

	ctx    context.Context
	cancel context.CancelFunc

	slots    chan struct{} // bounded parallelism
	notify   chan struct{} // coalesced completion signal
	inFlight sync.WaitGroup

	mu       sync.Mutex
	reserved []bool
	pending  []int
	err      error
	closed   bool
}

// New creates a controller moving data between ls and mem.
func New(ls *localstore.Store, mem shared.Memory, cfg Config, m metrics.CoreMetrics) (*Controller, error) {
	cfg.applyDefaults()
	if cfg.MaxTransferSize > MaxTransferSize || !localstore.Aligned(uint64(cfg.MaxTransferSize)) {
		return nil, fmt.Errorf("max transfer size %d must be a multiple of %d and at most %d",
			cfg.MaxTransferSize, localstore.QwordSize, MaxTransferSize)
	}

	pool := cfg.Pool
	if pool == nil {
		pool = bufpool.NewPool(&bufpool.Config{Sizes: []int{localstore.QwordSize * 64, int(cfg.MaxTransferSize)}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ls:       ls,
		mem:      mem,
		cfg:      cfg,
		pool:     pool,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, cfg.Slots),
		notify:   make(chan struct{}, 1),
		reserved: make([]bool, cfg.Tags),
		pending:  make([]int, cfg.Tags),
	}, nil
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// =============================================================================
// Engine
// =============================================================================

// ReserveTag hands out the lowest free tag.
func (c *Controller) ReserveTag() Tag {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, used := range c.reserved {
		if !used {
			c.reserved[i] = true
			return Tag(i)
		}
	}
	return InvalidTag
}

func (c *Controller) ReleaseTag(tag Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	check.Pre(c.validTag(tag) && c.reserved[tag], "release of unreserved tag %d", tag)
	check.Invariant(c.pending[tag] == 0, "tag %d released with %d transfers in flight", tag, c.pending[tag])
	c.reserved[tag] = false
}

func (c *Controller) validTag(tag Tag) bool {
	return tag >= 0 && int(tag) < len(c.reserved)
}

func (c *Controller) QueryAvail(n int) bool {
	return len(c.slots)+n <= cap(c.slots)
}

func (c *Controller) TagIdle(tag Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	check.Pre(c.validTag(tag), "poll of invalid tag %d", tag)
	return c.pending[tag] == 0
}

func (c *Controller) MaxTransferSize() uint32 {
	return c.cfg.MaxTransferSize
}

func (c *Controller) Get(tag Tag, lsa localstore.Addr, ea uint64, size uint32) {
	c.issue(Get, tag, lsa, ea, size)
}

func (c *Controller) Put(tag Tag, lsa localstore.Addr, ea uint64, size uint32) {
	c.issue(Put, tag, lsa, ea, size)
}

func (c *Controller) issue(dir Direction, tag Tag, lsa localstore.Addr, ea uint64, size uint32) {
	check.Pre(size != 0, "zero-length %s", dir)
	check.Pre(size <= c.cfg.MaxTransferSize, "%s of %d bytes exceeds %d", dir, size, c.cfg.MaxTransferSize)
	check.Pre(localstore.Aligned(uint64(lsa)) && localstore.Aligned(ea) && localstore.Aligned(uint64(size)),
		"misaligned %s lsa=%#x ea=%#x size=%d", dir, lsa, ea, size)
	check.Pre(c.ls.Contains(lsa, size), "%s range [%#x, +%d) outside local store", dir, lsa, size)

	// Checks panic, so they run after the lock is dropped.
	c.mu.Lock()
	closed := c.closed
	reserved := c.validTag(tag) && c.reserved[tag]
	c.mu.Unlock()
	check.Pre(!closed, "%s on closed controller", dir)
	check.Pre(reserved, "%s under unreserved tag %d", dir, tag)

	select {
	case c.slots <- struct{}{}:
	default:
		check.Pre(false, "%s issued with no free slot", dir)
	}

	c.mu.Lock()
	c.pending[tag]++
	c.mu.Unlock()
	c.inFlight.Add(1)

	metrics.TransferIssued(c.metrics, dir.String(), int(size))

	buf := c.pool.Get(int(size))
	if dir == Put {
		// Snapshot now: the issuing handler may reuse the region as soon as
		// the tag reports idle, but not before.
		copy(buf, c.ls.Bytes(lsa, size))
	}
	go c.run(dir, tag, lsa, ea, buf)
}

func (c *Controller) run(dir Direction, tag Tag, lsa localstore.Addr, ea uint64, buf []byte) {
	start := time.Now()
	var err error
	switch dir {
	case Get:
		if err = c.mem.ReadAt(c.ctx, buf, ea); err == nil {
			copy(c.ls.Bytes(lsa, uint32(len(buf))), buf)
		}
	case Put:
		err = c.mem.WriteAt(c.ctx, buf, ea)
	}
	c.finish(dir, tag, ea, buf, err, time.Since(start))
}

func (c *Controller) finish(dir Direction, tag Tag, ea uint64, buf []byte, err error, elapsed time.Duration) {
	size := len(buf)
	c.pool.Put(buf)

	c.mu.Lock()
	c.pending[tag]--
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("%s of %d bytes at ea %#x: %w", dir, size, ea, err)
	}
	c.mu.Unlock()

	if err != nil {
		logger.Error("Transfer failed", logger.KeyDirection, dir.String(), logger.KeyTag, int(tag),
			logger.KeyEA, ea, logger.KeyBytes, size, logger.KeyError, err)
	} else {
		logger.Debug("Transfer done", logger.KeyDirection, dir.String(), logger.KeyTag, int(tag),
			logger.KeyEA, ea, logger.KeyBytes, size, logger.KeyDurationMs, logger.Millis(elapsed))
	}

	<-c.slots
	c.inFlight.Done()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// =============================================================================
// Dispatcher side
// =============================================================================

// Notify is signalled (coalesced) whenever a piece finishes.
func (c *Controller) Notify() <-chan struct{} {
	return c.notify
}

// Err returns the first backend failure, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Outstanding returns the number of pieces in flight.
func (c *Controller) Outstanding() int {
	return len(c.slots)
}

// Drain waits for every in-flight piece to finish.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains outstanding pieces, then cancels backend I/O for any that
// are still running when ctx expires.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.Drain(ctx)
	c.cancel()
	return err
}

var _ Engine = (*Controller)(nil)
