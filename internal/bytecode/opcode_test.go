package bytecode

import "testing"

func TestOperandHash(t *testing.T) {
	if Operand(OpLoadHash) != OperandHash {
		t.Fatalf("expected OpLoadHash to carry a hash operand")
	}
	if Operand(OpLoadLocal) != OperandIndex {
		t.Fatalf("expected OpLoadLocal to default to an index operand")
	}
}

func TestLineForInstruction(t *testing.T) {
	lines := []SourceLine{{Line: 1, InstructionIdx: 0}, {Line: 3, InstructionIdx: 5}}
	if got := LineForInstruction(lines, 0); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := LineForInstruction(lines, 4); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := LineForInstruction(lines, 5); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := LineForInstruction(lines, 100); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

func TestOpcodeString(t *testing.T) {
	if OpAdd.String() != "Add" {
		t.Fatalf("got %q", OpAdd.String())
	}
	if Opcode(255).String() != "unknown" {
		t.Fatalf("expected unknown opcode name")
	}
}
