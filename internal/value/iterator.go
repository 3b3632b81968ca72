package value

// IteratorKind identifies which backing implementation an IteratorObj wraps.
type IteratorKind uint8

const (
	IterArray IteratorKind = iota
	IterString
	IterObject
	IterCoroutine
	IterRange
)

// IteratorObj implements the iterator protocol (spec §4.6). Every variant
// exposes the same two operations the VM drives: has_next and get_next.
// For Object iterators those are bound user functions; for the built-in
// variants they are computed inline by the VM against the fields below.
type IteratorObj struct {
	GCHeader
	Kind IteratorKind

	// This is the value driving a user-written (Object) iterator.
	This      Value
	HasNextFn Value
	GetNextFn Value

	// Backing is the Array or String being walked (IterArray/IterString).
	Backing Value
	Index   int

	// From/To/Step/Cur serve IterRange.
	From, To, Step, Cur int32

	// Coroutine is the Function (with executionContext) driving IterCoroutine.
	Coroutine Value

	// cached holds the realized next value for coroutine iteration: has_next
	// must step the coroutine to know whether it is finished, so it caches
	// the result for the following get_next (spec §9 design note).
	cached    Value
	hasCached bool
	done      bool
}

func (it *IteratorObj) Header() *GCHeader { return &it.GCHeader }

func (it *IteratorObj) MarkChildren(mark func(Managed)) {
	markValue(it.This, mark)
	markValue(it.HasNextFn, mark)
	markValue(it.GetNextFn, mark)
	markValue(it.Backing, mark)
	markValue(it.Coroutine, mark)
	markValue(it.cached, mark)
}

func NewArrayIterator(arr Value) *IteratorObj {
	return &IteratorObj{Kind: IterArray, Backing: arr}
}

func NewStringIterator(s Value) *IteratorObj {
	return &IteratorObj{Kind: IterString, Backing: s}
}

func NewObjectIterator(this, hasNext, getNext Value) *IteratorObj {
	return &IteratorObj{Kind: IterObject, This: this, HasNextFn: hasNext, GetNextFn: getNext}
}

func NewCoroutineIterator(co Value) *IteratorObj {
	return &IteratorObj{Kind: IterCoroutine, Coroutine: co}
}

func NewRangeIterator(from, to, step int32) *IteratorObj {
	return &IteratorObj{Kind: IterRange, From: from, To: to, Step: step, Cur: from}
}

// SetCached stashes a realized coroutine value between has_next and get_next.
func (it *IteratorObj) SetCached(v Value) {
	it.cached, it.hasCached = v, true
}

// TakeCached clears and returns the cached coroutine value.
func (it *IteratorObj) TakeCached() (Value, bool) {
	v, ok := it.cached, it.hasCached
	it.cached, it.hasCached = Nil, false
	return v, ok
}

func (it *IteratorObj) SetDone()   { it.done = true }
func (it *IteratorObj) IsDone() bool { return it.done }
