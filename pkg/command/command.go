// Package command implements the resumable command handlers of the core.
//
// A command is a record with an explicit Stage. Handler.Run executes one
// bounded step of it and either completes the command or returns the
// condition it is waiting for; the dispatcher calls Run again once that
// condition holds. Nothing survives between calls except the record, so
// every live value a handler needs after a suspension is a record field.
//
// Handlers never block and never return errors. Malformed commands and
// broken invariants are reported through pkg/check, which halts the core.
package command

import (
	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/check"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/metrics"
)

// Kind identifies a command variant.
type Kind uint8

const (
	KindCallFunc Kind = iota
	KindLoadData
	KindFilterLoad
	KindFilterUnload
	KindFilterAttachInput
	KindFilterAttachOutput
	KindFilterRun
)

func (k Kind) String() string {
	switch k {
	case KindCallFunc:
		return "call_func"
	case KindLoadData:
		return "load_data"
	case KindFilterLoad:
		return "filter_load"
	case KindFilterUnload:
		return "filter_unload"
	case KindFilterAttachInput:
		return "attach_input"
	case KindFilterAttachOutput:
		return "attach_output"
	case KindFilterRun:
		return "filter_run"
	default:
		return "unknown"
	}
}

// Stage is a command's resumption point. It starts at 0 and only grows.
type Stage uint8

// Stages shared by the handlers. Commands that copy data go
// init -> copy -> copy done; FilterRun goes init -> run.
const (
	stageInit Stage = iota
	stageCopy
	stageCopyDone
)

const stageRun = stageCopy

// Command is implemented by every command record.
type Command interface {
	Kind() Kind

	// Progress returns the current stage.
	Progress() Stage
}

// header is embedded by every record.
type header struct {
	Stage Stage
}

func (h *header) Progress() Stage { return h.Stage }

// WaitKind is the wake condition of a suspended command.
type WaitKind uint8

const (
	// WaitNone means the command completed.
	WaitNone WaitKind = iota
	// WaitSlot waits until a transfer slot is free.
	WaitSlot
	// WaitTag waits until every transfer under Result.Tag has finished.
	WaitTag
	// WaitYield asks to be run again at the dispatcher's convenience.
	WaitYield
)

func (w WaitKind) String() string {
	switch w {
	case WaitNone:
		return "none"
	case WaitSlot:
		return "slot"
	case WaitTag:
		return "tag"
	case WaitYield:
		return "yield"
	default:
		return "unknown"
	}
}

// Result is the outcome of one handler invocation.
type Result struct {
	Done bool
	Wait WaitKind
	Tag  dma.Tag
}

var (
	done      = Result{Done: true}
	waitSlot  = Result{Wait: WaitSlot}
	waitYield = Result{Wait: WaitYield}
)

func waitTag(tag dma.Tag) Result {
	return Result{Wait: WaitTag, Tag: tag}
}

// Tracker is told when a command finishes. It is called exactly once per
// command, and the handler does not touch the record afterwards.
type Tracker interface {
	Complete(cmd Command)
}

// Env is everything a handler reaches outside its record.
type Env struct {
	DMA     dma.Engine
	Buffers buffer.Resolver
	Deps    Tracker
	Metrics metrics.CoreMetrics
}

// Handler runs command records against an Env.
type Handler struct {
	env Env
}

// NewHandler creates a handler. DMA, Buffers and Deps are required.
func NewHandler(env Env) *Handler {
	return &Handler{env: env}
}

// Run executes one step of cmd.
func (h *Handler) Run(cmd Command) Result {
	switch c := cmd.(type) {
	case *CallFunc:
		return h.callFunc(c)
	case *LoadData:
		return h.loadData(c)
	case *FilterLoad:
		return h.filterLoad(c)
	case *FilterUnload:
		return h.filterUnload(c)
	case *FilterAttachInput:
		return h.attachInput(c)
	case *FilterAttachOutput:
		return h.attachOutput(c)
	case *FilterRun:
		return h.filterRun(c)
	default:
		check.Unreached("unknown command type %T", cmd)
		return Result{}
	}
}

func (h *Handler) complete(cmd Command) Result {
	h.env.Deps.Complete(cmd)
	metrics.CommandCompleted(h.env.Metrics, cmd.Kind().String())
	return done
}

func (h *Handler) sentinel() *buffer.CB {
	return h.env.Buffers.Lookup(buffer.None)
}

func badStage(cmd Command) {
	check.Unreached("%s: invalid stage %d", cmd.Kind(), cmd.Progress())
}
