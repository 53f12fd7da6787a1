//go:build nocheck

package buffer

type side struct{}

func (b *CB) FrontAction() Action { return ActionNone }
func (b *CB) SetFrontAction(Action) {}
func (b *CB) BackAction() Action { return ActionNone }
func (b *CB) SetBackAction(Action) {}
func (b *CB) SnapshotHead() {}
func (b *CB) SnapshotTail() {}
func (b *CB) IHead() uint32 { return 0 }
func (b *CB) OTail() uint32 { return 0 }
