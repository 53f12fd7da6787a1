// Package dispatch is the cooperative scheduler that drives command
// records: it tracks dependencies between commands, invokes ready commands
// round-robin, and parks suspended ones until the transfer channel reports
// the slot or tag they wait for.
//
// A Dispatcher is driven by a single goroutine. Submit may be called from
// that goroutine while Run is active (for example from a CallFunc command),
// but not concurrently with it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/internal/telemetry"
	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/command"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/metrics"
)

var (
	// ErrUnknownDependency is returned by Submit for a dependency that was
	// never submitted.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrNilCommand is returned by Submit for a nil command.
	ErrNilCommand = errors.New("nil command")
)

// ID names a submitted command.
type ID string

// Transfers is the transfer channel as the dispatcher needs it: the handler
// side plus completion notification and draining.
type Transfers interface {
	dma.Engine

	// Notify is signalled whenever a transfer finishes.
	Notify() <-chan struct{}

	// Drain waits for every in-flight transfer.
	Drain(ctx context.Context) error

	// Err reports the first failed transfer.
	Err() error
}

// Config holds dispatcher configuration.
type Config struct {
	// DrainTimeout bounds the wait for in-flight transfers when a run stops
	// early.
	// Default: 10s
	DrainTimeout time.Duration
}

// DefaultDrainTimeout is used when Config.DrainTimeout is zero.
const DefaultDrainTimeout = 10 * time.Second

type entry struct {
	id   ID
	name string
	cmd  command.Command

	blockers   int
	dependents []*entry
	queued     bool
	done       bool

	wait        command.Result
	invocations int
	started     time.Time
	elapsed     time.Duration

	ctx  context.Context
	span trace.Span
}

// Dispatcher runs command records to completion. It is the completion
// tracker of the handlers it drives.
type Dispatcher struct {
	cfg     Config
	dma     Transfers
	handler *command.Handler

	entries []*entry
	byID    map[ID]*entry
	queue   []*entry
	current *entry

	completed   int
	invocations int
	suspensions map[command.WaitKind]int
}

// New creates a dispatcher whose handlers issue transfers on transfers and
// resolve buffer handles through buffers.
func New(transfers Transfers, buffers buffer.Resolver, m metrics.CoreMetrics, cfg Config) *Dispatcher {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	d := &Dispatcher{
		cfg:         cfg,
		dma:         transfers,
		byID:        make(map[ID]*entry),
		suspensions: make(map[command.WaitKind]int),
	}
	d.handler = command.NewHandler(command.Env{
		DMA:     transfers,
		Buffers: buffers,
		Deps:    d,
		Metrics: m,
	})
	return d
}

// Submit adds cmd to the table. It becomes runnable once every command in
// deps has completed. Since deps must already be submitted, the dependency
// graph is acyclic.
func (d *Dispatcher) Submit(name string, cmd command.Command, deps ...ID) (ID, error) {
	if cmd == nil {
		return "", ErrNilCommand
	}

	e := &entry{id: ID(uuid.NewString()), name: name, cmd: cmd}
	if e.name == "" {
		e.name = cmd.Kind().String()
	}

	for _, dep := range deps {
		if _, ok := d.byID[dep]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
		}
	}
	for _, dep := range deps {
		parent := d.byID[dep]
		if parent.done {
			continue
		}
		parent.dependents = append(parent.dependents, e)
		e.blockers++
	}

	d.entries = append(d.entries, e)
	d.byID[e.id] = e
	if e.blockers == 0 {
		d.enqueue(e)
	}

	logger.Debug("Command submitted", logger.KeyCommandID, e.id, logger.KeyCommand, e.name,
		logger.KeyKind, cmd.Kind().String(), logger.KeyPending, e.blockers)
	return e.id, nil
}

func (d *Dispatcher) enqueue(e *entry) {
	if !e.queued {
		e.queued = true
		d.queue = append(d.queue, e)
	}
}

// Complete implements command.Tracker.
func (d *Dispatcher) Complete(cmd command.Command) {
	e := d.current
	check.Invariant(e != nil && e.cmd == cmd, "completion of %s outside its own invocation", cmd.Kind())
	check.Invariant(!e.done, "%s %q completed twice", cmd.Kind(), e.name)

	e.done = true
	d.completed++
	for _, child := range e.dependents {
		child.blockers--
		if child.blockers == 0 {
			d.enqueue(child)
		}
	}
}

// Pending reports how many submitted commands have not completed.
func (d *Dispatcher) Pending() int {
	return len(d.entries) - d.completed
}

// Run drives every submitted command to completion.
//
// Cancelling ctx stops scheduling between invocations; no handler is
// interrupted. A failed check in a handler, or a failed transfer, halts the
// run. In every case Run waits for in-flight transfers before returning.
func (d *Dispatcher) Run(ctx context.Context) (err error) {
	ctx, span := telemetry.StartRunSpan(ctx, telemetry.Dependencies(len(d.entries)))
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			fault, ok := check.AsFault(r)
			if !ok {
				panic(r)
			}
			err = d.halt(ctx, fault)
		}
	}()

	for d.Pending() > 0 {
		if err := ctx.Err(); err != nil {
			return d.halt(ctx, err)
		}
		if err := d.dma.Err(); err != nil {
			return d.halt(ctx, fmt.Errorf("transfer failed: %w", err))
		}

		if d.pass(ctx) {
			continue
		}

		// Acyclic dependencies mean something is always queued while work
		// remains; everything queued is parked on the transfer channel.
		if len(d.queue) == 0 {
			check.Unreached("%d commands pending with none runnable", d.Pending())
		}
		select {
		case <-d.dma.Notify():
		case <-ctx.Done():
		}
	}

	logger.InfoCtx(ctx, "Run complete", "commands", len(d.entries), logger.KeyInvocations, d.invocations,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

// pass gives each ready queued command one invocation, in queue order. It
// reports whether anything ran.
func (d *Dispatcher) pass(ctx context.Context) bool {
	ran := false
	// Commands enqueued during the pass run in the next one.
	queue := d.queue
	for _, e := range queue {
		if e.done || !d.ready(e) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		d.invoke(ctx, e)
		ran = true
	}

	live := d.queue[:0]
	for _, e := range d.queue {
		if e.done {
			e.queued = false
			continue
		}
		live = append(live, e)
	}
	clear(d.queue[len(live):])
	d.queue = live
	return ran
}

func (d *Dispatcher) ready(e *entry) bool {
	switch e.wait.Wait {
	case command.WaitSlot:
		return d.dma.QueryAvail(1)
	case command.WaitTag:
		return d.dma.TagIdle(e.wait.Tag)
	default:
		return true
	}
}

func (d *Dispatcher) invoke(ctx context.Context, e *entry) {
	kind := e.cmd.Kind().String()
	if e.invocations == 0 {
		e.started = time.Now()
		e.ctx, e.span = telemetry.StartCommandSpan(ctx, e.name, kind, telemetry.CommandID(string(e.id)))

		lc := logger.NewLogContext(string(e.id), e.name, kind).
			WithTrace(telemetry.TraceID(e.ctx), telemetry.SpanID(e.ctx))
		if addr, ok := filterAddr(e.cmd); ok {
			lc = lc.WithFilter(addr)
			e.span.SetAttributes(telemetry.Filter(addr))
		}
		e.ctx = logger.WithContext(e.ctx, lc)
		logger.DebugCtx(e.ctx, "Command started")
	} else {
		telemetry.AddEvent(e.ctx, telemetry.EventResume, telemetry.Stage(uint8(e.cmd.Progress())))
	}

	before := e.cmd.Progress()
	d.current = e
	res := d.handler.Run(e.cmd)
	d.current = nil

	e.invocations++
	d.invocations++
	check.Invariant(e.cmd.Progress() >= before, "%s %q stage went from %d to %d",
		kind, e.name, before, e.cmd.Progress())

	if res.Done {
		check.Invariant(e.done, "%s %q finished without signalling completion", kind, e.name)
		e.elapsed = time.Since(e.started)
		e.span.SetAttributes(telemetry.Invocations(e.invocations))
		e.span.End()
		logger.DebugCtx(e.ctx, "Command complete", logger.KeyInvocations, e.invocations,
			logger.KeyDurationMs, logger.Millis(e.elapsed))
		return
	}

	check.Invariant(!e.done, "%s %q suspended after completing", kind, e.name)
	e.wait = res
	d.suspensions[res.Wait]++
	telemetry.AddEvent(e.ctx, telemetry.EventSuspend,
		telemetry.Wait(res.Wait.String()), telemetry.Stage(uint8(e.cmd.Progress())))
}

// halt stops the run with err after draining the transfer channel.
func (d *Dispatcher) halt(ctx context.Context, err error) error {
	if d.current != nil {
		e := d.current
		d.current = nil
		logger.ErrorCtx(e.ctx, "Command halted the core", logger.KeyStage, int(e.cmd.Progress()), logger.KeyError, err)
		telemetry.RecordError(e.ctx, err)
		e.span.End()
	} else {
		logger.ErrorCtx(ctx, "Run stopped", logger.KeyPending, d.Pending(), logger.KeyError, err)
	}
	telemetry.RecordError(ctx, err)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DrainTimeout)
	defer cancel()
	if derr := d.dma.Drain(drainCtx); derr != nil {
		return errors.Join(err, fmt.Errorf("drain transfers: %w", derr))
	}
	return err
}

func filterAddr(cmd command.Command) (uint32, bool) {
	switch c := cmd.(type) {
	case *command.FilterLoad:
		return uint32(c.Filter.Addr), true
	case *command.FilterUnload:
		return uint32(c.Filter.Addr), true
	case *command.FilterAttachInput:
		return uint32(c.Filter.Addr), true
	case *command.FilterAttachOutput:
		return uint32(c.Filter.Addr), true
	case *command.FilterRun:
		return uint32(c.Filter.Addr), true
	default:
		return 0, false
	}
}
