package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ColorTextHandler writes one line per record:
//
//	15:04:05.000 INFO  message key=value group.key=value
//
// Levels are colored when writing to a terminal.
type ColorTextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex // shared by all derived handlers
	prefix   string      // pre-rendered attrs from WithAttrs
	group    string      // dotted group path from WithGroup
	useColor bool
}

// NewColorTextHandler creates a handler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorTextHandler{
		opts:     opts,
		w:        w,
		mu:       &sync.Mutex{},
		useColor: useColor,
	}
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(h.level(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&sb, h.group, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ColorTextHandler) level(l slog.Level) string {
	var name, color string
	switch {
	case l < slog.LevelInfo:
		name, color = "DEBUG", colorGray
	case l < slog.LevelWarn:
		name, color = "INFO ", colorGreen
	case l < slog.LevelError:
		name, color = "WARN ", colorYellow
	default:
		name, color = "ERROR", colorRed
	}
	if !h.useColor {
		return name
	}
	return color + name + colorReset
}

func (h *ColorTextHandler) writeAttr(sb *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(sb, key, ga)
		}
		return
	}

	sb.WriteByte(' ')
	if h.useColor {
		sb.WriteString(colorCyan + key + colorReset)
	} else {
		sb.WriteString(key)
	}
	sb.WriteByte('=')
	sb.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " =\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.prefix)
	for _, a := range attrs {
		h.writeAttr(&sb, h.group, a)
	}
	clone := *h
	clone.prefix = sb.String()
	return &clone
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}
