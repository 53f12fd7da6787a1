//go:build !nocheck

package buffer

// side carries the validation-only bookkeeping: which operation drives each
// end of the buffer, and the offsets observed after the last run batch.
type side struct {
	front Action
	back  Action
	iHead uint32
	oTail uint32
}

// FrontAction is set by the run that holds this buffer as an input tape,
// BackAction by the one that holds it as an output tape.
func (b *CB) FrontAction() Action { return b.front }
func (b *CB) SetFrontAction(a Action) { b.front = a }
func (b *CB) BackAction() Action { return b.back }
func (b *CB) SetBackAction(a Action) { b.back = a }
func (b *CB) SnapshotHead() { b.iHead = b.Head }
func (b *CB) SnapshotTail() { b.oTail = b.Tail }
func (b *CB) IHead() uint32 { return b.iHead }
func (b *CB) OTail() uint32 { return b.oTail }
