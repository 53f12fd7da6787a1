// Package logger is the process-wide structured logger.
//
// It wraps log/slog with a package-level handler that can be reconfigured at
// runtime (level, text or json format, output) and adds context-aware variants
// that prepend the command being executed and its trace ids.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents log levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // "text" or "json"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stderr
	outFile  *os.File
	useColor bool
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	useColor = isTerminal(os.Stderr.Fd())
	reconfigure()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// reconfigure rebuilds the slog handler from the current settings
func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: Level(currentLevel.Load()).slog()}

	var h slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies cfg. Output can be "stdout", "stderr", or a file path that is
// opened for appending.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var (
			w     io.Writer
			f     *os.File
			color bool
		)
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			var err error
			f, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			w = f
		}

		mu.Lock()
		if outFile != nil {
			_ = outFile.Close()
		}
		output, outFile, useColor = w, f, color
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

// InitWithWriter directs output to w. Used by tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	reconfigure()
}

// SetLevel sets the minimum log level. Unknown names are ignored.
func SetLevel(level string) {
	l, ok := ParseLevel(level)
	if !ok {
		return
	}
	currentLevel.Store(int32(l))
	reconfigure()
}

// SetFormat selects text or json output. Anything else is ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

// Enabled reports whether messages at l would be written.
func Enabled(l Level) bool {
	return l >= Level(currentLevel.Load())
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// ============================================================================
// Structured Logging API
// ============================================================================

// Debug logs at debug level: Debug("message", "key1", value1, ...)
func Debug(msg string, args ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	getLogger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	getLogger().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	getLogger().Warn(msg, args...)
}

// Error logs at error level. Errors are never filtered.
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// ============================================================================
// Context-aware Logging API
// ============================================================================

// DebugCtx logs at debug level, prefixed with the LogContext in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	getLogger().Debug(msg, appendContextFields(ctx, args)...)
}

// InfoCtx logs at info level, prefixed with the LogContext in ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	getLogger().Info(msg, appendContextFields(ctx, args)...)
}

// WarnCtx logs at warn level, prefixed with the LogContext in ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	getLogger().Warn(msg, appendContextFields(ctx, args)...)
}

// ErrorCtx logs at error level, prefixed with the LogContext in ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, appendContextFields(ctx, args)...)
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 12+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.CommandID != "" {
		out = append(out, KeyCommandID, lc.CommandID)
	}
	if lc.Command != "" {
		out = append(out, KeyCommand, lc.Command)
	}
	if lc.Kind != "" {
		out = append(out, KeyKind, lc.Kind)
	}
	if lc.Filter != 0 {
		out = append(out, KeyFilter, Hex(lc.Filter))
	}
	return append(out, args...)
}

// With returns a slog.Logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// ============================================================================
// Helpers
// ============================================================================

// Duration returns the time since start in milliseconds.
func Duration(start time.Time) float64 {
	return Millis(time.Since(start))
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// Hex formats an address the way log readers expect it.
func Hex[T ~uint32 | ~uint64](v T) string {
	return fmt.Sprintf("%#x", uint64(v))
}

// Debugf logs at debug level with printf-style formatting.
func Debugf(format string, v ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	getLogger().Debug(fmt.Sprintf(format, v...))
}

// Infof logs at info level with printf-style formatting.
func Infof(format string, v ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	getLogger().Info(fmt.Sprintf(format, v...))
}

// IsTerminal reports whether fd refers to a terminal. CLI output uses it to
// decide on ANSI colors.
func IsTerminal(fd uintptr) bool {
	return isTerminal(fd)
}
