package dispatch

import (
	"time"

	"github.com/yxiaowhut/streamit/pkg/command"
)

// Stats summarises a dispatcher's work so far.
type Stats struct {
	Submitted   int `json:"submitted" yaml:"submitted"`
	Completed   int `json:"completed" yaml:"completed"`
	Invocations int `json:"invocations" yaml:"invocations"`

	// Suspensions counts suspended invocations by wait kind.
	Suspensions map[string]int `json:"suspensions" yaml:"suspensions"`
}

// CommandStats describes one submitted command.
type CommandStats struct {
	ID          ID            `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Kind        string        `json:"kind" yaml:"kind"`
	Stage       command.Stage `json:"stage" yaml:"stage"`
	Invocations int           `json:"invocations" yaml:"invocations"`
	Done        bool          `json:"done" yaml:"done"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Submitted:   len(d.entries),
		Completed:   d.completed,
		Invocations: d.invocations,
		Suspensions: make(map[string]int, len(d.suspensions)),
	}
	for k, n := range d.suspensions {
		s.Suspensions[k.String()] = n
	}
	return s
}

// Commands lists every submitted command in submission order.
func (d *Dispatcher) Commands() []CommandStats {
	out := make([]CommandStats, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, CommandStats{
			ID:          e.id,
			Name:        e.name,
			Kind:        e.cmd.Kind().String(),
			Stage:       e.cmd.Progress(),
			Invocations: e.invocations,
			Done:        e.done,
			Elapsed:     e.elapsed,
		})
	}
	return out
}
