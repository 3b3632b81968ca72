package value

import (
	"sort"
	"strings"
)

// ProtoHash is the reserved hash for the `proto` member; every Object carries
// it at slot 0. The compiler and VM must agree on this constant (spec §4.1).
const ProtoHash uint32 = 0

// Member is one (hash, value) pair of an Object, kept sorted by Hash.
type Member struct {
	Hash  uint32
	Value Value
}

// ObjectObj is a prototype-chained record: members sorted ascending by hash
// so lookup is a binary search (spec invariant I2/P2).
type ObjectObj struct {
	GCHeader
	Members []Member
}

func (o *ObjectObj) Header() *GCHeader { return &o.GCHeader }

func (o *ObjectObj) MarkChildren(mark func(Managed)) {
	for _, m := range o.Members {
		markValue(m.Value, mark)
	}
}

// NewObject builds an Object from members, sorting them and ensuring a proto
// slot exists (nil proto if the caller did not supply one).
func NewObject(members []Member) *ObjectObj {
	o := &ObjectObj{Members: members}
	sort.Slice(o.Members, func(i, j int) bool { return o.Members[i].Hash < o.Members[j].Hash })
	if len(o.Members) == 0 || o.Members[0].Hash != ProtoHash {
		o.insertUnsorted(ProtoHash, Nil)
	}
	return o
}

func (o *ObjectObj) insertUnsorted(hash uint32, v Value) {
	o.Members = append(o.Members, Member{Hash: hash, Value: v})
	sort.Slice(o.Members, func(i, j int) bool { return o.Members[i].Hash < o.Members[j].Hash })
}

// find returns the index of hash via binary search, or -1 with the insertion point.
func (o *ObjectObj) find(hash uint32) (idx int, insertAt int) {
	n := len(o.Members)
	i := sort.Search(n, func(i int) bool { return o.Members[i].Hash >= hash })
	if i < n && o.Members[i].Hash == hash {
		return i, i
	}
	return -1, i
}

// Get returns the member locally stored on o (no prototype walk).
func (o *ObjectObj) Get(hash uint32) (Value, bool) {
	if idx, _ := o.find(hash); idx >= 0 {
		return o.Members[idx].Value, true
	}
	return Nil, false
}

// Set overwrites an existing member in place, or inserts a new one sorted.
func (o *ObjectObj) Set(hash uint32, v Value) {
	idx, insertAt := o.find(hash)
	if idx >= 0 {
		o.Members[idx].Value = v
		return
	}
	o.Members = append(o.Members, Member{})
	copy(o.Members[insertAt+1:], o.Members[insertAt:])
	o.Members[insertAt] = Member{Hash: hash, Value: v}
}

// Proto returns the proto member (slot 0 once sorted, since ProtoHash==0 is
// numerically the smallest possible hash).
func (o *ObjectObj) Proto() Value {
	v, _ := o.Get(ProtoHash)
	return v
}

// Merge implements `+` on two Objects: a sorted union where the right-hand
// operand wins on duplicate hashes.
func Merge(a, b *ObjectObj) *ObjectObj {
	members := make([]Member, len(a.Members))
	copy(members, a.Members)
	out := &ObjectObj{Members: members}
	for _, m := range b.Members {
		out.Set(m.Hash, m.Value)
	}
	return out
}

func (o *ObjectObj) describe() string {
	parts := make([]string, 0, len(o.Members))
	for _, m := range o.Members {
		parts = append(parts, m.Value.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
