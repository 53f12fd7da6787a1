// Package builtin provides work routines that pipeline scripts can refer to
// by name. All of them move 32-bit words between tapes.
package builtin

import (
	"encoding/binary"
	"slices"

	"github.com/yxiaowhut/streamit/pkg/buffer"
	"github.com/yxiaowhut/streamit/pkg/filter"
)

// Routine is a named work routine and the tape shape it expects.
type Routine struct {
	Name    string `json:"name" yaml:"name"`
	Inputs  uint8  `json:"inputs" yaml:"inputs"`
	Outputs uint8  `json:"outputs" yaml:"outputs"`

	// StateSize is the minimum persistent state the routine uses.
	StateSize uint32 `json:"state_size" yaml:"state_size"`

	Work filter.WorkFunc `json:"-" yaml:"-"`
}

var routines = map[string]Routine{
	"source": {Name: "source", Outputs: 1, StateSize: 16, Work: Source},
	"scale":  {Name: "scale", Inputs: 1, Outputs: 1, Work: Scale},
	"add":    {Name: "add", Inputs: 2, Outputs: 1, Work: Add},
	"sink":   {Name: "sink", Inputs: 1, StateSize: 16, Work: Sink},
	"copy":   {Name: "copy", Inputs: 1, Outputs: 1, Work: Copy},
}

// Lookup returns the routine registered under name.
func Lookup(name string) (Routine, bool) {
	r, ok := routines[name]
	return r, ok
}

// Names lists the registered routines in sorted order.
func Names() []string {
	names := make([]string, 0, len(routines))
	for name := range routines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Param encodes words as a parameter blob.
func Param(words ...uint32) []byte {
	if len(words) == 0 {
		return nil
	}
	p := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(p[4*i:], w)
	}
	return p
}

func paramWord(param []byte, i int, def uint32) uint32 {
	if len(param) < 4*(i+1) {
		return def
	}
	return binary.LittleEndian.Uint32(param[4*i:])
}

// Source emits a counter to output 0. State word 0 holds the next value;
// param word 0 is the step (default 1).
func Source(param, state []byte, _, outputs []*buffer.CB, iters uint32) {
	step := paramWord(param, 0, 1)
	next := binary.LittleEndian.Uint32(state)
	for range iters {
		if !outputs[0].Push32(next) {
			break
		}
		next += step
	}
	binary.LittleEndian.PutUint32(state, next)
}

// Scale multiplies each input word by param word 0 (default 1).
func Scale(param, _ []byte, inputs, outputs []*buffer.CB, iters uint32) {
	k := paramWord(param, 0, 1)
	for range iters {
		if outputs[0].Free() < 4 {
			return
		}
		v, ok := inputs[0].Pop32()
		if !ok {
			return
		}
		outputs[0].Push32(v * k)
	}
}

// Add pops one word from each input and pushes their sum.
func Add(_, _ []byte, inputs, outputs []*buffer.CB, iters uint32) {
	for range iters {
		if inputs[0].Len() < 4 || inputs[1].Len() < 4 || outputs[0].Free() < 4 {
			return
		}
		a, _ := inputs[0].Pop32()
		b, _ := inputs[1].Pop32()
		outputs[0].Push32(a + b)
	}
}

// Sink drains input 0. State holds the running sum (uint64 at offset 0) and
// the word count (uint32 at offset 8).
func Sink(_, state []byte, inputs, _ []*buffer.CB, iters uint32) {
	sum := binary.LittleEndian.Uint64(state)
	count := binary.LittleEndian.Uint32(state[8:])
	for range iters {
		v, ok := inputs[0].Pop32()
		if !ok {
			break
		}
		sum += uint64(v)
		count++
	}
	binary.LittleEndian.PutUint64(state, sum)
	binary.LittleEndian.PutUint32(state[8:], count)
}

// Copy forwards input 0 to every output.
func Copy(_, _ []byte, inputs, outputs []*buffer.CB, iters uint32) {
	for range iters {
		for _, out := range outputs {
			if out.Free() < 4 {
				return
			}
		}
		v, ok := inputs[0].Pop32()
		if !ok {
			return
		}
		for _, out := range outputs {
			out.Push32(v)
		}
	}
}
