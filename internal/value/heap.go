package value

// Color is a heap object's tri-color mark-sweep state (spec invariant I5/I6).
type Color uint8

const (
	ColorWhite0 Color = iota
	ColorWhite1
	ColorGray
	ColorBlack
	ColorStatic
)

// GCHeader is the common header every heap object embeds: the intrusive
// singly-linked heap list pointer and the object's current color. Embedding
// (rather than a separate allocation) keeps one allocation per heap object.
type GCHeader struct {
	next  Managed
	color Color
}

func (h *GCHeader) Next() Managed     { return h.next }
func (h *GCHeader) SetNext(m Managed) { h.next = m }
func (h *GCHeader) Color() Color      { return h.color }
func (h *GCHeader) SetColor(c Color)  { h.color = c }

// Managed is implemented by every heap-allocated object kind (String, Array,
// Object, Function, Box, Iterator, Error). The gc package walks the heap and
// mark-phase children purely through this interface, so it never needs to
// import the concrete object types.
type Managed interface {
	Header() *GCHeader
	// MarkChildren invokes mark on every Managed value directly reachable
	// from this object, per the "children by type" table in spec §4.4.
	MarkChildren(mark func(Managed))
}

func markValue(v Value, mark func(Managed)) {
	if v.obj != nil {
		mark(v.obj)
	}
}
