package value

// BoxObj is a single-cell mutable container: the representation of a local
// that has been captured by a closure, so every capturer shares one cell
// (spec invariant I3).
type BoxObj struct {
	GCHeader
	Val Value
}

func (b *BoxObj) Header() *GCHeader { return &b.GCHeader }

func (b *BoxObj) MarkChildren(mark func(Managed)) {
	markValue(b.Val, mark)
}

func NewBox(v Value) *BoxObj { return &BoxObj{Val: v} }
