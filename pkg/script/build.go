package script

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/internal/telemetry"
	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/command"
	"github.com/yxiaowhut/streamit/pkg/dispatch"
	"github.com/yxiaowhut/streamit/pkg/filter"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/spu"
)

// Plan is a script materialised on a core: every object allocated and every
// command submitted, waiting for the dispatcher to run.
type Plan struct {
	Script *Script

	Buffers  map[string]*buffer.CB
	Filters  map[string]*filter.CB
	Regions  map[string]localstore.Addr
	Commands map[string]dispatch.ID

	descs map[string]filter.Desc
}

// Build allocates the script's objects on core, seeds shared memory and
// submits the commands in declaration order.
func Build(ctx context.Context, core *spu.SPU, s *Script) (_ *Plan, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanScript)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.ScriptName(s.Name), telemetry.ScriptCommands(len(s.Commands)))
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	p := &Plan{
		Script:   s,
		Buffers:  make(map[string]*buffer.CB, len(s.Buffers)),
		Filters:  make(map[string]*filter.CB, len(s.Filters)),
		Regions:  make(map[string]localstore.Addr, len(s.Regions)),
		Commands: make(map[string]dispatch.ID, len(s.Commands)),
		descs:    make(map[string]filter.Desc, len(s.Filters)),
	}

	for _, b := range s.Buffers {
		cb, err := core.NewBuffer(uint32(b.Size))
		if err != nil {
			return nil, fmt.Errorf("buffer %q: %w", b.Name, err)
		}
		p.Buffers[b.Name] = cb
	}

	for _, f := range s.Filters {
		desc, err := f.desc()
		if err != nil {
			return nil, err
		}
		cb, err := core.NewFilter(desc)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.Name, err)
		}
		p.Filters[f.Name] = cb
		p.descs[f.Name] = desc
		logger.DebugCtx(ctx, "Filter allocated", logger.KeyScript, s.Name, "name", f.Name,
			logger.KeyWork, f.Work, logger.Filter(uint32(cb.Addr)))
	}

	for _, r := range s.Regions {
		addr, err := core.Alloc(uint32(r.Size))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Name, err)
		}
		p.Regions[r.Name] = addr
	}

	for _, m := range s.Memory {
		data := make([]byte, 4*len(m.Words))
		for i, w := range m.Words {
			binary.LittleEndian.PutUint32(data[4*i:], w)
		}
		if err := core.Memory.WriteAt(ctx, data, m.Addr); err != nil {
			return nil, fmt.Errorf("seed memory at %#x: %w", m.Addr, err)
		}
	}

	for i := range s.Commands {
		c := &s.Commands[i]
		cmd, err := p.command(c)
		if err != nil {
			return nil, err
		}
		deps := make([]dispatch.ID, len(c.After))
		for j, name := range c.After {
			deps[j] = p.Commands[name]
		}
		id, err := core.Dispatcher.Submit(c.Name, cmd, deps...)
		if err != nil {
			return nil, fmt.Errorf("submit %q: %w", c.Name, err)
		}
		p.Commands[c.Name] = id
	}

	logger.InfoCtx(ctx, "Script built", logger.KeyScript, s.Name,
		"buffers", len(p.Buffers), "filters", len(p.Filters), "commands", len(p.Commands),
		"ls_used", core.Arena.Used())
	return p, nil
}

func (f *FilterSpec) desc() (filter.Desc, error) {
	r, err := f.routine()
	if err != nil {
		return filter.Desc{}, err
	}
	desc := filter.Desc{
		NumInputs:  r.Inputs,
		NumOutputs: r.Outputs,
		StateSize:  f.stateSize(r),
		Work:       r.Work,
	}
	if desc.StateSize > 0 {
		desc.StateAddr = f.StateAddr
	}
	if len(f.Params) > 0 {
		desc.Param = make([]byte, 4*len(f.Params))
		for i, w := range f.Params {
			binary.LittleEndian.PutUint32(desc.Param[4*i:], w)
		}
	}
	return desc, nil
}

// handle resolves a buffer name, with the empty name meaning detach.
func (p *Plan) handle(name string) buffer.Handle {
	if name == "" {
		return buffer.None
	}
	return p.Buffers[name].Handle
}

func (p *Plan) command(c *CommandSpec) (command.Command, error) {
	filt := p.Filters[c.Filter]

	switch c.Op {
	case OpCallFunc:
		name, script, msg := c.Name, p.Script.Name, c.Message
		return &command.CallFunc{Func: func() {
			logger.Info("Script callback", logger.KeyScript, script, logger.KeyCommand, name, "message", msg)
		}}, nil
	case OpLoadData:
		return &command.LoadData{Dest: p.Regions[c.Region], Src: c.Src, Bytes: uint32(c.Bytes)}, nil
	case OpFilterLoad:
		return &command.FilterLoad{Filter: filt, Desc: p.descs[c.Filter]}, nil
	case OpFilterUnload:
		return &command.FilterUnload{Filter: filt, DetachOnly: c.DetachOnly}, nil
	case OpAttachInput:
		return &command.FilterAttachInput{Filter: filt, Tape: c.Tape, Buffer: p.handle(c.Buffer)}, nil
	case OpAttachOutput:
		return &command.FilterAttachOutput{Filter: filt, Tape: c.Tape, Buffer: p.handle(c.Buffer)}, nil
	case OpFilterRun:
		return &command.FilterRun{Filter: filt, Iters: c.Iters, LoopIters: c.LoopIters}, nil
	default:
		return nil, fmt.Errorf("command %q: unknown op %q", c.Name, c.Op)
	}
}
