package script

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/pkg/dispatch"
	"github.com/yxiaowhut/streamit/pkg/spu"
)

// Report summarises a finished script run.
type Report struct {
	Script   string                  `json:"script" yaml:"script"`
	Elapsed  time.Duration           `json:"elapsed" yaml:"elapsed"`
	Stats    dispatch.Stats          `json:"stats" yaml:"stats"`
	Commands []dispatch.CommandStats `json:"commands" yaml:"commands"`
	Buffers  []BufferReport          `json:"buffers,omitempty" yaml:"buffers,omitempty"`
	Dumps    []Dump                  `json:"dumps,omitempty" yaml:"dumps,omitempty"`
}

// BufferReport is the occupancy of a buffer after the run.
type BufferReport struct {
	Name   string `json:"name" yaml:"name"`
	Handle uint32 `json:"handle" yaml:"handle"`
	Size   uint32 `json:"size" yaml:"size"`
	Words  int    `json:"words" yaml:"words"`
}

// Dump is a shared memory range read back after the run.
type Dump struct {
	Name  string   `json:"name" yaml:"name"`
	Addr  uint64   `json:"addr" yaml:"addr"`
	Words []uint32 `json:"words" yaml:"words"`
}

// Run builds s on core, runs the dispatcher to completion and collects the
// report. A failed run still returns the partial report.
func Run(ctx context.Context, core *spu.SPU, s *Script) (*Report, error) {
	start := time.Now()

	plan, err := Build(ctx, core, s)
	if err != nil {
		return nil, err
	}

	runErr := core.Run(ctx)

	report := &Report{
		Script:   s.Name,
		Elapsed:  time.Since(start),
		Stats:    core.Dispatcher.Stats(),
		Commands: core.Dispatcher.Commands(),
	}
	for _, b := range s.Buffers {
		cb := plan.Buffers[b.Name]
		report.Buffers = append(report.Buffers, BufferReport{
			Name:   b.Name,
			Handle: uint32(cb.Handle),
			Size:   cb.Size(),
			Words:  cb.Words(),
		})
	}

	if runErr != nil {
		logger.ErrorCtx(ctx, "Script failed", logger.KeyScript, s.Name, logger.Err(runErr))
		return report, fmt.Errorf("run %q: %w", s.Name, runErr)
	}

	for _, d := range s.Dump {
		buf := make([]byte, 4*d.Words)
		if err := core.Memory.ReadAt(ctx, buf, d.Addr); err != nil {
			return report, fmt.Errorf("dump %q: %w", d.Name, err)
		}
		words := make([]uint32, d.Words)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(buf[4*i:])
		}
		report.Dumps = append(report.Dumps, Dump{Name: d.Name, Addr: d.Addr, Words: words})
	}

	logger.InfoCtx(ctx, "Script complete", logger.KeyScript, s.Name,
		"completed", report.Stats.Completed, logger.KeyInvocations, report.Stats.Invocations,
		logger.DurationMs(float64(report.Elapsed.Microseconds())/1000))
	return report, nil
}

// Headers and Rows render the per-command table.
func (r *Report) Headers() []string {
	return []string{"Command", "Kind", "Invocations", "Done", "Elapsed"}
}

func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		rows = append(rows, []string{
			c.Name,
			c.Kind,
			strconv.Itoa(c.Invocations),
			strconv.FormatBool(c.Done),
			c.Elapsed.Round(time.Microsecond).String(),
		})
	}
	return rows
}
