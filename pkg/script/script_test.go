package script

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/shared"
	"github.com/yxiaowhut/streamit/pkg/spu"
	"github.com/yxiaowhut/streamit/pkg/store/block/memory"
)

const pipeline = `
name: scale-by-three
buffers:
  - {name: a, size: 512}
  - {name: b, size: 512}
filters:
  - {name: src, work: source, state_addr: 0x10000}
  - {name: scale, work: scale, params: [3]}
  - {name: sink, work: sink, state_addr: 0x20000}
regions:
  - {name: table, size: 64}
memory:
  - {addr: 0x10000, words: [1]}
  - {addr: 0x30000, words: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16]}
commands:
  - {name: load-table, op: load_data, region: table, src: 0x30000, bytes: 64}
  - {name: load-src, op: filter_load, filter: src}
  - {name: load-scale, op: filter_load, filter: scale}
  - {name: load-sink, op: filter_load, filter: sink}
  - {name: src.out, op: attach_output, filter: src, buffer: a, after: [load-src]}
  - {name: scale.in, op: attach_input, filter: scale, buffer: a, after: [load-scale]}
  - {name: scale.out, op: attach_output, filter: scale, buffer: b, after: [load-scale]}
  - {name: sink.in, op: attach_input, filter: sink, buffer: b, after: [load-sink]}
  - name: run-src
    op: filter_run
    filter: src
    iters: 100
    loop_iters: 16
    after: [src.out, scale.in, scale.out, sink.in]
  - {name: run-scale, op: filter_run, filter: scale, iters: 100, loop_iters: 16, after: [run-src]}
  - {name: run-sink, op: filter_run, filter: sink, iters: 100, loop_iters: 16, after: [run-scale]}
  - {name: unload-src, op: filter_unload, filter: src, after: [run-src]}
  - {name: unload-sink, op: filter_unload, filter: sink, after: [run-sink]}
  - {name: done, op: call_func, message: finished, after: [unload-src, unload-sink, load-table]}
dump:
  - {name: sink-state, addr: 0x20000, words: 3}
  - {name: src-state, addr: 0x10000, words: 1}
`

func newCore(t *testing.T) *spu.SPU {
	t.Helper()
	mem, err := shared.NewPaged(memory.New(), shared.DefaultPageSize)
	require.NoError(t, err)
	core, err := spu.New(spu.Options{Memory: mem})
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close(context.Background()) })
	return core
}

func runCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParse_Pipeline(t *testing.T) {
	s, err := Parse([]byte(pipeline))
	require.NoError(t, err)

	assert.Equal(t, "scale-by-three", s.Name)
	require.Len(t, s.Filters, 3)
	assert.Equal(t, uint64(0x10000), s.Filters[0].StateAddr)
	assert.Equal(t, []uint32{3}, s.Filters[1].Params)
	assert.EqualValues(t, 512, s.Buffers[0].Size)
	assert.Len(t, s.Commands, 14)
}

func TestRun_Pipeline(t *testing.T) {
	s, err := Parse([]byte(pipeline))
	require.NoError(t, err)

	report, err := Run(runCtx(t), newCore(t), s)
	require.NoError(t, err)

	assert.Equal(t, 14, report.Stats.Completed)
	require.Len(t, report.Dumps, 2)
	assert.Equal(t, []uint32{15150, 0, 100}, report.Dumps[0].Words, "sum of 3*i and count")
	assert.Equal(t, []uint32{101}, report.Dumps[1].Words, "source counter written back")

	for _, b := range report.Buffers {
		assert.Zero(t, b.Words, "buffer %s drained", b.Name)
	}

	rows := report.Rows()
	require.Len(t, rows, 14)
	assert.Equal(t, "load-table", rows[0][0])
	assert.Equal(t, "load_data", rows[0][1])
	assert.Len(t, report.Headers(), len(rows[0]))
}

func TestBuild_LoadsRegion(t *testing.T) {
	s, err := Parse([]byte(pipeline))
	require.NoError(t, err)
	core := newCore(t)

	plan, err := Build(context.Background(), core, s)
	require.NoError(t, err)
	require.NoError(t, core.Run(runCtx(t)))

	table := core.LS.Bytes(plan.Regions["table"], 64)
	for i := 0; i < 16; i++ {
		assert.Equal(t, uint32(i+1), binary.LittleEndian.Uint32(table[4*i:]))
	}
	assert.Len(t, plan.Commands, 14)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipeline), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "scale-by-three", s.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "name: x\nbogus: 1\ncommands: [{name: a, op: call_func}]\n",
			want: "bogus",
		},
		{
			name: "no commands",
			yaml: "name: x\n",
			want: "Commands",
		},
		{
			name: "bad op",
			yaml: "name: x\ncommands: [{name: a, op: jump}]\n",
			want: "oneof",
		},
		{
			name: "unknown work routine",
			yaml: "name: x\nfilters: [{name: f, work: fft}]\ncommands: [{name: a, op: filter_load, filter: f}]\n",
			want: "fft",
		},
		{
			name: "unknown filter",
			yaml: "name: x\ncommands: [{name: a, op: filter_run, filter: f, iters: 1, loop_iters: 1}]\n",
			want: `filter "f"`,
		},
		{
			name: "forward dependency",
			yaml: "name: x\ncommands: [{name: a, op: call_func, after: [b]}, {name: b, op: call_func}]\n",
			want: `after "b"`,
		},
		{
			name: "duplicate command",
			yaml: "name: x\ncommands: [{name: a, op: call_func}, {name: a, op: call_func}]\n",
			want: "declared twice",
		},
		{
			name: "buffer not a power of two",
			yaml: "name: x\nbuffers: [{name: a, size: 100}]\ncommands: [{name: a, op: call_func}]\n",
			want: "power of two",
		},
		{
			name: "tape out of range",
			yaml: "name: x\nbuffers: [{name: a, size: 64}]\nfilters: [{name: f, work: scale}]\n" +
				"commands: [{name: a, op: attach_input, filter: f, tape: 1, buffer: a}]\n",
			want: "tape 1 out of range",
		},
		{
			name: "misaligned state",
			yaml: "name: x\nfilters: [{name: f, work: sink, state_addr: 0x1004}]\ncommands: [{name: a, op: filter_load, filter: f}]\n",
			want: "state_addr",
		},
		{
			name: "load larger than region",
			yaml: "name: x\nregions: [{name: r, size: 32}]\ncommands: [{name: a, op: load_data, region: r, bytes: 64}]\n",
			want: "does not fit",
		},
		{
			name: "zero loop iters",
			yaml: "name: x\nfilters: [{name: f, work: copy}]\ncommands: [{name: a, op: filter_run, filter: f, iters: 4}]\n",
			want: "loop_iters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_UnknownReferenceIsSentinel(t *testing.T) {
	_, err := Parse([]byte("name: x\ncommands: [{name: a, op: filter_load, filter: ghost}]\n"))
	assert.True(t, errors.Is(err, ErrUnknownReference))
}

func TestParse_DetachWithoutBuffer(t *testing.T) {
	s, err := Parse([]byte(`
name: detach
buffers: [{name: a, size: 64}]
filters: [{name: f, work: copy}]
commands:
  - {name: load, op: filter_load, filter: f}
  - {name: in, op: attach_input, filter: f, buffer: a, after: [load]}
  - {name: off, op: attach_input, filter: f, after: [in]}
`))
	require.NoError(t, err)

	report, err := Run(runCtx(t), newCore(t), s)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.Completed)
}
