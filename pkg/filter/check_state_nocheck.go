//go:build nocheck

package filter

type checkState struct{}

func (f *CB) Busy() bool { return false }
func (f *CB) SetBusy(bool) {}
func (f *CB) AttachedInputs() int { return 0 }
func (f *CB) AttachedOutputs() int { return 0 }
func (f *CB) AdjustAttachedInputs(int) {}
func (f *CB) AdjustAttachedOutputs(int) {}
func (f *CB) ResetAttached() {}
