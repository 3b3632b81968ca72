package symbol

import "github.com/element-run/element/internal/value"

// ConstantKind is the wire/in-memory tag of one constant-pool slot.
type ConstantKind uint8

const (
	ConstNil ConstantKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstCode
)

// Constant is one slot of the pool. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Constant struct {
	Kind ConstantKind
	B    bool
	I    int32
	F    float32
	S    string
	Code *value.CodeObject
}

// Pool is the per-compilation (and, after loading, per-VM) constant pool.
// Slots 0/1/2 are always Nil/true/false (spec §4.1); literals are deduped by
// linear scan within a single compile, which is fine since literal tables
// are small.
type Pool struct {
	Constants []Constant
}

func NewPool() *Pool {
	p := &Pool{}
	p.Constants = append(p.Constants, Constant{Kind: ConstNil})
	p.Constants = append(p.Constants, Constant{Kind: ConstBool, B: true})
	p.Constants = append(p.Constants, Constant{Kind: ConstBool, B: false})
	return p
}

const (
	NilSlot      = 0
	TrueSlot     = 1
	FalseSlot    = 2
)

func (p *Pool) AddInt(v int32) int {
	for i, c := range p.Constants {
		if c.Kind == ConstInt && c.I == v {
			return i
		}
	}
	p.Constants = append(p.Constants, Constant{Kind: ConstInt, I: v})
	return len(p.Constants) - 1
}

func (p *Pool) AddFloat(v float32) int {
	for i, c := range p.Constants {
		if c.Kind == ConstFloat && c.F == v {
			return i
		}
	}
	p.Constants = append(p.Constants, Constant{Kind: ConstFloat, F: v})
	return len(p.Constants) - 1
}

func (p *Pool) AddString(s string) int {
	for i, c := range p.Constants {
		if c.Kind == ConstString && c.S == s {
			return i
		}
	}
	p.Constants = append(p.Constants, Constant{Kind: ConstString, S: s})
	return len(p.Constants) - 1
}

// AddCode never dedups: each function body is a distinct CodeObject.
func (p *Pool) AddCode(co *value.CodeObject) int {
	p.Constants = append(p.Constants, Constant{Kind: ConstCode, Code: co})
	return len(p.Constants) - 1
}

func (p *Pool) Get(idx int) Constant { return p.Constants[idx] }
func (p *Pool) Len() int             { return len(p.Constants) }

// Append merges another pool's constants onto the end of p, returning the
// offset at which they now live (used when a loaded module's blob constants
// are merged into the VM's running pool, spec §6).
func (p *Pool) Append(other []Constant) int {
	offset := len(p.Constants)
	p.Constants = append(p.Constants, other...)
	return offset
}
