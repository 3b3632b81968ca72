// Package symbol implements name→hash interning with open-addressed
// probing, the per-compilation constant pool, and the wire-format codec for
// the bytecode blob (spec §4.1, §6).
package symbol

import "github.com/element-run/element/internal/value"

// hashName computes the raw FNV-1a hash of name and a secondary odd "step"
// derived from the same hash, used to walk the open-addressing probe
// sequence hash, hash+step, hash+2*step, ... (spec §4.1).
func hashName(name string) (h uint32, step uint32) {
	h = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	step = (h>>16 | 1) // force odd so the probe sequence visits every slot mod 2^32
	return h, step
}

// Reserved names whose hashes the compiler and VM must agree on bit-for-bit.
const (
	ReservedProtoName    = "proto"
	ReservedHasNextName  = "has_next"
	ReservedGetNextName  = "get_next"
)

// Table is the symbol table: an open-addressed name<->hash map. `proto` is
// pinned to the sentinel hash 0 (value.ProtoHash); `has_next`/`get_next` are
// interned like any other name but computed once and cached by NewTable so
// every caller observes the same final probed hash.
type Table struct {
	hashToName map[uint32]string
	nameToHash map[string]uint32

	hasNextHash uint32
	getNextHash uint32
}

func NewTable() *Table {
	t := &Table{
		hashToName: make(map[uint32]string),
		nameToHash: make(map[string]uint32),
	}
	t.hashToName[value.ProtoHash] = ReservedProtoName
	t.nameToHash[ReservedProtoName] = value.ProtoHash
	t.hasNextHash = t.Intern(ReservedHasNextName)
	t.getNextHash = t.Intern(ReservedGetNextName)
	return t
}

// Intern resolves name to its probed hash, registering it if new.
func (t *Table) Intern(name string) uint32 {
	if h, ok := t.nameToHash[name]; ok {
		return h
	}
	h, step := hashName(name)
	probe := h
	for {
		existing, occupied := t.hashToName[probe]
		if !occupied {
			t.hashToName[probe] = name
			t.nameToHash[name] = probe
			return probe
		}
		if existing == name {
			t.nameToHash[name] = probe
			return probe
		}
		probe += step
	}
}

// Name resolves a previously interned hash back to its name (spec round-trip
// law R2: nameFromHash(hash(name)) == name).
func (t *Table) Name(hash uint32) (string, bool) {
	name, ok := t.hashToName[hash]
	return name, ok
}

func (t *Table) HasNextHash() uint32 { return t.hasNextHash }
func (t *Table) GetNextHash() uint32 { return t.getNextHash }

// Entries returns every (hash, name) pair currently interned, in hash order,
// used by the blob encoder and the -ds debug dump.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.hashToName))
	for h, n := range t.hashToName {
		out = append(out, Entry{Hash: h, Name: n})
	}
	sortEntries(out)
	return out
}

type Entry struct {
	Hash uint32
	Name string
}

func sortEntries(e []Entry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j-1].Hash > e[j].Hash; j-- {
			e[j-1], e[j] = e[j], e[j-1]
		}
	}
}
