package symbol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/value"
)

func TestProtoHashIsSentinelZero(t *testing.T) {
	tbl := NewTable()
	require.Equal(t, value.ProtoHash, tbl.Intern(ReservedProtoName))
}

func TestReservedHashesStableAndCached(t *testing.T) {
	tbl := NewTable()
	require.Equal(t, tbl.HasNextHash(), tbl.Intern(ReservedHasNextName))
	require.Equal(t, tbl.GetNextHash(), tbl.Intern(ReservedGetNextName))
}

// TestNameFromHashRoundTrip is spec round-trip law R2.
func TestNameFromHashRoundTrip(t *testing.T) {
	tbl := NewTable()
	h := tbl.Intern("greet")
	name, ok := tbl.Name(h)
	require.True(t, ok)
	require.Equal(t, "greet", name)
}

func TestInternIsIdempotent(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("x")
	b := tbl.Intern("x")
	require.Equal(t, a, b)
}

func TestConstantPoolFixedSlotsAndDedup(t *testing.T) {
	p := NewPool()
	require.Equal(t, ConstNil, p.Get(NilSlot).Kind)
	require.True(t, p.Get(TrueSlot).B)
	require.False(t, p.Get(FalseSlot).B)

	a := p.AddInt(42)
	b := p.AddInt(42)
	require.Equal(t, a, b)

	c := p.AddString("hi")
	d := p.AddString("hi")
	require.Equal(t, c, d)
}

// TestBlobRoundTrip is spec round-trip law R1: the VM's pools after parsing
// a blob agree, entry-for-entry from offset forward, with the compiler's
// output pools.
func TestBlobRoundTrip(t *testing.T) {
	tbl := NewTable()
	_ = tbl.Intern("fib")

	pool := NewPool()
	pool.AddInt(10)
	pool.AddString("hello")
	pool.AddCode(&value.CodeObject{
		Instructions:         []bytecode.Instruction{{Op: bytecode.OpAdd}, {Op: bytecode.OpEndFunction}},
		Lines:                []bytecode.SourceLine{{Line: 1, InstructionIdx: 0}},
		LocalVariablesCount:  2,
		NamedParametersCount: 1,
		ClosureMapping:       []int32{0, -1},
	})

	blob := Encode(Blob{
		SymbolOffset:   0,
		Symbols:        tbl.Entries(),
		ConstantOffset: 0,
		Constants:      pool.Constants,
	})

	decoded, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, len(tbl.Entries()), len(decoded.Symbols))
	require.Equal(t, pool.Len(), len(decoded.Constants))

	gotCode := decoded.Constants[len(decoded.Constants)-1]
	require.Equal(t, ConstCode, gotCode.Kind)
	require.Equal(t, 2, gotCode.Code.LocalVariablesCount)
	require.Equal(t, 1, gotCode.Code.NamedParametersCount)
	require.Equal(t, []int32{0, -1}, gotCode.Code.ClosureMapping)
	require.Len(t, gotCode.Code.Instructions, 2)
	require.Equal(t, bytecode.OpAdd, gotCode.Code.Instructions[0].Op)
}
