package value

// ErrorObj carries a message string. It is a distinct heap kind from String
// so it participates in is_error without a string ever being mistaken for one.
type ErrorObj struct {
	GCHeader
	Message string
}

func (e *ErrorObj) Header() *GCHeader            { return &e.GCHeader }
func (e *ErrorObj) MarkChildren(func(Managed))   {}

func NewError(msg string) *ErrorObj { return &ErrorObj{Message: msg} }

// NewErrorValue is a convenience wrapping NewError directly into a Value.
// The caller is still responsible for registering it with the allocator so
// it is linked into the heap list; this constructor alone does not allocate
// on the GC's heap.
func NewErrorValue(msg string) Value {
	return FromManaged(KindError, NewError(msg))
}
