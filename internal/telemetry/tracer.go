package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Core attributes use the "spu." prefix; storage attributes
// follow the OpenTelemetry conventions where one exists.
const (
	// ========================================================================
	// Command attributes
	// ========================================================================
	AttrCommandID    = "spu.command.id"
	AttrCommandName  = "spu.command.name"
	AttrCommandKind  = "spu.command.kind"
	AttrStage        = "spu.command.stage"
	AttrWait         = "spu.command.wait"
	AttrInvocations  = "spu.command.invocations"
	AttrDependencies = "spu.command.dependencies"

	// ========================================================================
	// Filter and buffer attributes
	// ========================================================================
	AttrFilter    = "spu.filter"
	AttrTape      = "spu.tape"
	AttrBuffer    = "spu.buffer"
	AttrIters     = "spu.iters"
	AttrLoopIters = "spu.loop_iters"

	// ========================================================================
	// Transfer attributes
	// ========================================================================
	AttrTag       = "dma.tag"
	AttrDirection = "dma.direction"
	AttrLSA       = "dma.lsa"
	AttrEA        = "dma.ea"
	AttrBytes     = "dma.bytes"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"

	// ========================================================================
	// Script attributes
	// ========================================================================
	AttrScriptName     = "script.name"
	AttrScriptCommands = "script.commands"
)

// Span names.
const (
	SpanRun     = "spu.run"
	SpanCommand = "spu.command"
	SpanScript  = "script.build"
)

// Span events.
const (
	EventSuspend = "suspend"
	EventResume  = "resume"
)

func CommandID(id string) attribute.KeyValue {
	return attribute.String(AttrCommandID, id)
}

func CommandName(name string) attribute.KeyValue {
	return attribute.String(AttrCommandName, name)
}

func CommandKind(kind string) attribute.KeyValue {
	return attribute.String(AttrCommandKind, kind)
}

func Stage(stage uint8) attribute.KeyValue {
	return attribute.Int(AttrStage, int(stage))
}

func Wait(wait string) attribute.KeyValue {
	return attribute.String(AttrWait, wait)
}

func Invocations(n int) attribute.KeyValue {
	return attribute.Int(AttrInvocations, n)
}

func Dependencies(n int) attribute.KeyValue {
	return attribute.Int(AttrDependencies, n)
}

// Filter formats an FCB address as hex.
func Filter(addr uint32) attribute.KeyValue {
	return attribute.String(AttrFilter, fmt.Sprintf("0x%05x", addr))
}

func Tape(i uint8) attribute.KeyValue {
	return attribute.Int(AttrTape, int(i))
}

// Buffer formats a buffer handle as hex.
func Buffer(h uint32) attribute.KeyValue {
	return attribute.String(AttrBuffer, fmt.Sprintf("0x%05x", h))
}

func Iters(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrIters, int64(n))
}

func LoopIters(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrLoopIters, int64(n))
}

func Tag(tag int) attribute.KeyValue {
	return attribute.Int(AttrTag, tag)
}

func Direction(dir string) attribute.KeyValue {
	return attribute.String(AttrDirection, dir)
}

func LSA(addr uint32) attribute.KeyValue {
	return attribute.Int64(AttrLSA, int64(addr))
}

func EA(addr uint64) attribute.KeyValue {
	return attribute.String(AttrEA, fmt.Sprintf("0x%x", addr))
}

func Bytes(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrBytes, int64(n))
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

func ScriptName(name string) attribute.KeyValue {
	return attribute.String(AttrScriptName, name)
}

func ScriptCommands(n int) attribute.KeyValue {
	return attribute.Int(AttrScriptCommands, n)
}

// StartCommandSpan starts the span covering one command from its first
// invocation to its completion.
func StartCommandSpan(ctx context.Context, name, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{
		CommandName(name),
		CommandKind(kind),
	}, attrs...)

	return StartSpan(ctx, SpanCommand+"."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(allAttrs...),
	)
}

// StartRunSpan starts the root span of a dispatcher run.
func StartRunSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRun, trace.WithAttributes(attrs...))
}
