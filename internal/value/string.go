package value

// StringObj is an immutable byte sequence.
type StringObj struct {
	GCHeader
	Data string
}

func (s *StringObj) Header() *GCHeader { return &s.GCHeader }

// MarkChildren is a no-op: strings hold no managed children.
func (s *StringObj) MarkChildren(func(Managed)) {}

func NewString(s string) *StringObj { return &StringObj{Data: s} }
