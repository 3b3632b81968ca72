package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectSortedAndBinarySearch(t *testing.T) {
	o := NewObject([]Member{
		{Hash: 50, Value: Int(1)},
		{Hash: 10, Value: Int(2)},
		{Hash: 30, Value: Int(3)},
	})
	for i := 1; i < len(o.Members); i++ {
		require.Less(t, o.Members[i-1].Hash, o.Members[i].Hash)
	}
	v, ok := o.Get(30)
	require.True(t, ok)
	require.Equal(t, int32(3), v.AsInt())

	_, ok = o.Get(999)
	require.False(t, ok)
}

func TestObjectProtoSlotAutoInserted(t *testing.T) {
	o := NewObject([]Member{{Hash: 5, Value: Int(1)}})
	proto, ok := o.Get(ProtoHash)
	require.True(t, ok)
	require.True(t, proto.IsNil())
}

func TestObjectSetInsertsSorted(t *testing.T) {
	o := NewObject(nil)
	o.Set(20, Int(1))
	o.Set(5, Int(2))
	o.Set(15, Int(3))
	var hashes []uint32
	for _, m := range o.Members {
		hashes = append(hashes, m.Hash)
	}
	require.Equal(t, []uint32{ProtoHash, 5, 15, 20}, hashes)
}

func TestMergeRightWins(t *testing.T) {
	a := NewObject([]Member{{Hash: 5, Value: Int(1)}})
	b := NewObject([]Member{{Hash: 5, Value: Int(2)}, {Hash: 9, Value: Int(3)}})
	m := Merge(a, b)
	v, _ := m.Get(5)
	require.Equal(t, int32(2), v.AsInt())
	v, _ = m.Get(9)
	require.Equal(t, int32(3), v.AsInt())
}

func TestArrayNegativeIndex(t *testing.T) {
	a := NewArray([]Value{Int(1), Int(2), Int(3)})
	idx, ok := a.Index(-1)
	require.True(t, ok)
	require.Equal(t, 2, idx)

	_, ok = a.Index(-4)
	require.False(t, ok)

	_, ok = a.Index(3)
	require.False(t, ok)
}

func TestTruthy(t *testing.T) {
	require.False(t, Nil.Truthy())
	require.False(t, False.Truthy())
	require.True(t, True.Truthy())
	require.True(t, Int(0).Truthy())
	require.True(t, FromManaged(KindString, NewString("")).Truthy())
}
