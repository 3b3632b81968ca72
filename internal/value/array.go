package value

import "strings"

// ArrayObj is an ordered, mutable sequence of Values.
type ArrayObj struct {
	GCHeader
	Elements []Value
}

func (a *ArrayObj) Header() *GCHeader { return &a.GCHeader }

func (a *ArrayObj) MarkChildren(mark func(Managed)) {
	for _, e := range a.Elements {
		markValue(e, mark)
	}
}

func NewArray(elems []Value) *ArrayObj { return &ArrayObj{Elements: elems} }

// Index resolves a possibly-negative array index per spec boundary rules
// ("-1 is the last element"). ok is false if the index is out of range.
func (a *ArrayObj) Index(i int32) (int, bool) {
	n := len(a.Elements)
	idx := int(i)
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func (a *ArrayObj) describe() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
