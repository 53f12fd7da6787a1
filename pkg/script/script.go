// Package script describes a pipeline run in YAML: the buffers and filters to
// allocate, the initial contents of shared memory, and the commands to submit
// with their dependencies.
//
//	name: scale-by-three
//	buffers:
//	  - {name: a, size: 512}
//	filters:
//	  - {name: src, work: source, state_addr: 0x10000}
//	commands:
//	  - {name: load-src, op: filter_load, filter: src}
//	  - {name: src.out, op: attach_output, filter: src, buffer: a, after: [load-src]}
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yxiaowhut/streamit/internal/bytesize"
	"github.com/yxiaowhut/streamit/pkg/filter/builtin"
	"github.com/yxiaowhut/streamit/pkg/localstore"
)

// Operations accepted in CommandSpec.Op.
const (
	OpCallFunc     = "call_func"
	OpLoadData     = "load_data"
	OpFilterLoad   = "filter_load"
	OpFilterUnload = "filter_unload"
	OpAttachInput  = "attach_input"
	OpAttachOutput = "attach_output"
	OpFilterRun    = "filter_run"
)

// ErrUnknownReference is returned when a script names a buffer, filter,
// region or command it does not declare.
var ErrUnknownReference = errors.New("unknown reference")

// Script is a parsed pipeline description.
type Script struct {
	Name string `yaml:"name" validate:"required"`

	Buffers []BufferSpec `yaml:"buffers,omitempty" validate:"dive"`
	Filters []FilterSpec `yaml:"filters,omitempty" validate:"dive"`

	// Regions are LS areas that load_data commands fill.
	Regions []RegionSpec `yaml:"regions,omitempty" validate:"dive"`

	// Memory is written to shared memory before any command runs.
	Memory []MemorySpec `yaml:"memory,omitempty" validate:"dive"`

	Commands []CommandSpec `yaml:"commands" validate:"required,min=1,dive"`

	// Dump lists shared memory ranges read back into the report.
	Dump []DumpSpec `yaml:"dump,omitempty" validate:"dive"`
}

// BufferSpec allocates a ring buffer in the local store.
type BufferSpec struct {
	Name string            `yaml:"name" validate:"required"`
	Size bytesize.ByteSize `yaml:"size" validate:"required"`
}

// FilterSpec allocates a filter control block running a builtin routine.
type FilterSpec struct {
	Name string `yaml:"name" validate:"required"`
	Work string `yaml:"work" validate:"required"`

	// StateSize defaults to what the routine needs and may only grow it.
	StateSize bytesize.ByteSize `yaml:"state_size,omitempty"`
	StateAddr uint64            `yaml:"state_addr,omitempty"`

	Params []uint32 `yaml:"params,omitempty"`
}

// RegionSpec reserves a named LS area.
type RegionSpec struct {
	Name string            `yaml:"name" validate:"required"`
	Size bytesize.ByteSize `yaml:"size" validate:"required"`
}

// MemorySpec seeds shared memory with little-endian words at Addr.
type MemorySpec struct {
	Addr  uint64   `yaml:"addr"`
	Words []uint32 `yaml:"words" validate:"required,min=1"`
}

// CommandSpec is one submission. Fields apply according to Op.
type CommandSpec struct {
	Name string `yaml:"name" validate:"required"`
	Op   string `yaml:"op" validate:"required,oneof=call_func load_data filter_load filter_unload attach_input attach_output filter_run"`

	Filter string `yaml:"filter,omitempty"`

	// Tape and Buffer select an attachment. An empty Buffer detaches.
	Tape   uint8  `yaml:"tape,omitempty"`
	Buffer string `yaml:"buffer,omitempty"`

	Iters     uint32 `yaml:"iters,omitempty"`
	LoopIters uint32 `yaml:"loop_iters,omitempty"`

	DetachOnly bool `yaml:"detach_only,omitempty"`

	// Region, Src and Bytes describe a load_data copy from shared memory.
	Region string            `yaml:"region,omitempty"`
	Src    uint64            `yaml:"src,omitempty"`
	Bytes  bytesize.ByteSize `yaml:"bytes,omitempty"`

	// Message is logged by call_func.
	Message string `yaml:"message,omitempty"`

	// After lists commands, declared earlier, that must complete first.
	After []string `yaml:"after,omitempty"`
}

// DumpSpec reads Words little-endian words from shared memory at Addr.
type DumpSpec struct {
	Name  string `yaml:"name" validate:"required"`
	Addr  uint64 `yaml:"addr"`
	Words int    `yaml:"words" validate:"required,min=1,max=65536"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Load reads and validates the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and cross references. All problems are
// reported together.
func (s *Script) Validate() error {
	var errs []error

	if err := structValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Script."), fe.Tag()))
		}
		return errors.Join(errs...)
	}

	buffers := names(s.Buffers, func(b BufferSpec) string { return b.Name })
	filters := make(map[string]builtin.Routine, len(s.Filters))
	regions := make(map[string]bytesize.ByteSize, len(s.Regions))
	for _, r := range s.Regions {
		regions[r.Name] = r.Size
	}
	errs = append(errs, duplicates("buffer", s.Buffers, func(b BufferSpec) string { return b.Name })...)
	errs = append(errs, duplicates("filter", s.Filters, func(f FilterSpec) string { return f.Name })...)
	errs = append(errs, duplicates("region", s.Regions, func(r RegionSpec) string { return r.Name })...)

	for _, b := range s.Buffers {
		if b.Size < 16 || b.Size > bytesize.GiB || b.Size&(b.Size-1) != 0 {
			errs = append(errs, fmt.Errorf("buffer %q: size %s must be a power of two >= 16", b.Name, b.Size))
		}
	}
	for _, r := range s.Regions {
		if _, err := r.Size.Uint32(); err != nil {
			errs = append(errs, fmt.Errorf("region %q: %w", r.Name, err))
		}
	}
	for _, f := range s.Filters {
		r, err := f.routine()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		filters[f.Name] = r
		if f.StateSize != 0 && !localstore.Aligned(uint64(f.StateSize)) {
			errs = append(errs, fmt.Errorf("filter %q: state_size %s is not a quadword multiple", f.Name, f.StateSize))
		}
		if f.stateSize(r) > 0 && !localstore.Aligned(f.StateAddr) {
			errs = append(errs, fmt.Errorf("filter %q: state_addr %#x is not quadword aligned", f.Name, f.StateAddr))
		}
	}

	seen := make(map[string]bool, len(s.Commands))
	for _, c := range s.Commands {
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("command %q declared twice", c.Name))
		}
		for _, dep := range c.After {
			if !seen[dep] {
				errs = append(errs, fmt.Errorf("command %q: after %q: %w (dependencies must be declared first)", c.Name, dep, ErrUnknownReference))
			}
		}
		seen[c.Name] = true
		errs = append(errs, c.check(filters, buffers, regions)...)
	}

	return errors.Join(errs...)
}

func (c *CommandSpec) check(filters map[string]builtin.Routine, buffers map[string]bool, regions map[string]bytesize.ByteSize) []error {
	var errs []error
	ref := func(kind, name string, known bool) {
		if name == "" {
			errs = append(errs, fmt.Errorf("command %q: %s is required for %s", c.Name, kind, c.Op))
		} else if !known {
			errs = append(errs, fmt.Errorf("command %q: %s %q: %w", c.Name, kind, name, ErrUnknownReference))
		}
	}

	switch c.Op {
	case OpFilterLoad, OpFilterUnload, OpFilterRun:
		_, ok := filters[c.Filter]
		ref("filter", c.Filter, ok)
	case OpAttachInput, OpAttachOutput:
		r, ok := filters[c.Filter]
		ref("filter", c.Filter, ok)
		if c.Buffer != "" && !buffers[c.Buffer] {
			errs = append(errs, fmt.Errorf("command %q: buffer %q: %w", c.Name, c.Buffer, ErrUnknownReference))
		}
		if ok {
			n := r.Inputs
			if c.Op == OpAttachOutput {
				n = r.Outputs
			}
			if c.Tape >= n {
				errs = append(errs, fmt.Errorf("command %q: tape %d out of range, %s has %d", c.Name, c.Tape, c.Filter, n))
			}
		}
	case OpLoadData:
		size, ok := regions[c.Region]
		ref("region", c.Region, ok)
		if !localstore.Aligned(c.Src) || !localstore.Aligned(uint64(c.Bytes)) {
			errs = append(errs, fmt.Errorf("command %q: src and bytes must be quadword aligned", c.Name))
		}
		if ok && c.Bytes > size {
			errs = append(errs, fmt.Errorf("command %q: %s does not fit region %q of %s", c.Name, c.Bytes, c.Region, size))
		}
	}

	if c.Op == OpFilterRun && c.Iters > 0 && c.LoopIters == 0 {
		errs = append(errs, fmt.Errorf("command %q: loop_iters must be positive", c.Name))
	}
	return errs
}

func (f *FilterSpec) routine() (builtin.Routine, error) {
	r, ok := builtin.Lookup(f.Work)
	if !ok {
		return builtin.Routine{}, fmt.Errorf("filter %q: work routine %q: %w (known: %s)",
			f.Name, f.Work, ErrUnknownReference, strings.Join(builtin.Names(), ", "))
	}
	return r, nil
}

func (f *FilterSpec) stateSize(r builtin.Routine) uint32 {
	return max(uint32(f.StateSize), r.StateSize)
}

func names[T any](items []T, key func(T) string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[key(it)] = true
	}
	return m
}

func duplicates[T any](kind string, items []T, key func(T) string) []error {
	var errs []error
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			errs = append(errs, fmt.Errorf("%s %q declared twice", kind, k))
		}
		seen[k] = true
	}
	return errs
}
