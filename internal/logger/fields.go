package logger

import "log/slog"

// Standard field keys. Use them consistently so log aggregation can query
// across components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Commands
	// ========================================================================
	KeyCommandID   = "command_id"  // dispatcher-assigned id
	KeyCommand     = "command"     // command name
	KeyKind        = "kind"        // command kind
	KeyStage       = "stage"       // resumption stage
	KeyWait        = "wait"        // suspension reason: slot, tag, yield
	KeyInvocations = "invocations" // handler invocations so far
	KeyPending     = "pending"     // commands not yet complete

	// ========================================================================
	// Filters and Buffers
	// ========================================================================
	KeyFilter = "filter" // LS address of a filter control block
	KeyBuffer = "buffer" // buffer handle
	KeyTape   = "tape"   // tape index
	KeyIters  = "iters"  // iterations
	KeyWork   = "work"   // work routine name

	// ========================================================================
	// Transfers
	// ========================================================================
	KeyTag       = "tag"       // DMA tag
	KeyDirection = "direction" // get or put
	KeyLSA       = "lsa"       // local store address
	KeyEA        = "ea"        // effective (shared memory) address
	KeyBytes     = "bytes"     // byte count

	// ========================================================================
	// Storage Backend
	// ========================================================================
	KeyStoreType = "store_type" // memory, filesystem, badger, s3
	KeyBucket    = "bucket"
	KeyPath      = "path"
	KeyPages     = "pages"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyScript     = "script"
)

// Command returns a slog.Attr for a command name.
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// Kind returns a slog.Attr for a command kind.
func Kind(kind string) slog.Attr {
	return slog.String(KeyKind, kind)
}

// Tag returns a slog.Attr for a DMA tag.
func Tag(tag int) slog.Attr {
	return slog.Int(KeyTag, tag)
}

// Filter returns a slog.Attr for a filter address.
func Filter(addr uint32) slog.Attr {
	return slog.String(KeyFilter, Hex(addr))
}

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error; a nil error yields an empty Attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
