//go:build !nocheck

package filter

// checkState is the validation-only bookkeeping of an FCB.
type checkState struct {
	busy            bool
	attachedInputs  int
	attachedOutputs int
}

// Busy reports whether the filter is loading, running or unloaded.
func (f *CB) Busy() bool { return f.busy }

func (f *CB) SetBusy(busy bool) { f.busy = busy }

// AttachedInputs is the number of input slots holding a real buffer.
func (f *CB) AttachedInputs() int { return f.attachedInputs }

// AttachedOutputs is the number of output slots holding a real buffer.
func (f *CB) AttachedOutputs() int { return f.attachedOutputs }

func (f *CB) AdjustAttachedInputs(delta int) { f.attachedInputs += delta }

func (f *CB) AdjustAttachedOutputs(delta int) { f.attachedOutputs += delta }

// ResetAttached zeroes both attachment counters.
func (f *CB) ResetAttached() {
	f.attachedInputs = 0
	f.attachedOutputs = 0
}
