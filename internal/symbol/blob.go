package symbol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/value"
)

// Blob is the wire format described in spec §6: a single contiguous buffer
// emitted per compile. Every field is a single byte or a little-endian
// uint32, whatever the host's endianness or word width.
type Blob struct {
	SymbolOffset   uint32
	Symbols        []Entry
	ConstantOffset uint32
	Constants      []Constant
}

// Encode serializes b per the layout in spec §6.
func Encode(b Blob) []byte {
	var symBody bytes.Buffer
	for _, e := range b.Symbols {
		writeU32(&symBody, e.Hash)
		writeU32(&symBody, uint32(len(e.Name)))
		symBody.WriteString(e.Name)
	}

	var constBody bytes.Buffer
	for _, c := range b.Constants {
		writeConstant(&constBody, c)
	}

	var out bytes.Buffer
	writeU32(&out, uint32(symBody.Len()))
	writeU32(&out, uint32(len(b.Symbols)))
	writeU32(&out, b.SymbolOffset)
	out.Write(symBody.Bytes())

	writeU32(&out, uint32(constBody.Len()))
	writeU32(&out, uint32(len(b.Constants)))
	writeU32(&out, b.ConstantOffset)
	out.Write(constBody.Bytes())

	return out.Bytes()
}

// Decode parses a blob previously produced by Encode.
func Decode(data []byte) (Blob, error) {
	r := bytes.NewReader(data)

	symbolsBytes, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	symbolCount, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	symbolOffset, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	symBody := make([]byte, symbolsBytes)
	if _, err := io.ReadFull(r, symBody); err != nil && symbolsBytes > 0 {
		return Blob{}, err
	}
	sr := bytes.NewReader(symBody)
	symbols := make([]Entry, 0, symbolCount)
	for i := uint32(0); i < symbolCount; i++ {
		hash, err := readU32(sr)
		if err != nil {
			return Blob{}, err
		}
		nameLen, err := readU32(sr)
		if err != nil {
			return Blob{}, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(sr, name); err != nil && nameLen > 0 {
			return Blob{}, err
		}
		symbols = append(symbols, Entry{Hash: hash, Name: string(name)})
	}

	constantsBytes, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	constantCount, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	constantOffset, err := readU32(r)
	if err != nil {
		return Blob{}, err
	}
	constBody := make([]byte, constantsBytes)
	if _, err := io.ReadFull(r, constBody); err != nil && constantsBytes > 0 {
		return Blob{}, err
	}
	cr := bytes.NewReader(constBody)
	constants := make([]Constant, 0, constantCount)
	for i := uint32(0); i < constantCount; i++ {
		c, err := readConstant(cr)
		if err != nil {
			return Blob{}, err
		}
		constants = append(constants, c)
	}

	return Blob{
		SymbolOffset:   symbolOffset,
		Symbols:        symbols,
		ConstantOffset: constantOffset,
		Constants:      constants,
	}, nil
}

func writeConstant(w *bytes.Buffer, c Constant) {
	w.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ConstNil:
	case ConstBool:
		if c.B {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case ConstInt:
		writeU32(w, uint32(c.I))
	case ConstFloat:
		writeU32(w, math.Float32bits(c.F))
	case ConstString:
		writeU32(w, uint32(len(c.S)))
		w.WriteString(c.S)
	case ConstCode:
		writeCode(w, c.Code)
	}
}

func writeCode(w *bytes.Buffer, co *value.CodeObject) {
	writeU32(w, uint32(int32(co.LocalVariablesCount)))
	writeU32(w, uint32(int32(co.NamedParametersCount)))
	writeU32(w, uint32(len(co.ClosureMapping)))
	for _, m := range co.ClosureMapping {
		writeU32(w, uint32(m))
	}
	writeU32(w, uint32(len(co.Instructions)))
	for _, ins := range co.Instructions {
		w.WriteByte(byte(ins.Op))
		writeU32(w, uint32(ins.A))
	}
	writeU32(w, uint32(len(co.Lines)))
	for _, l := range co.Lines {
		writeU32(w, uint32(l.Line))
		writeU32(w, uint32(l.InstructionIdx))
	}
}

func readConstant(r *bytes.Reader) (Constant, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return Constant{}, err
	}
	kind := ConstantKind(kindByte)
	c := Constant{Kind: kind}
	switch kind {
	case ConstNil:
	case ConstBool:
		b, err := r.ReadByte()
		if err != nil {
			return Constant{}, err
		}
		c.B = b != 0
	case ConstInt:
		v, err := readU32(r)
		if err != nil {
			return Constant{}, err
		}
		c.I = int32(v)
	case ConstFloat:
		v, err := readU32(r)
		if err != nil {
			return Constant{}, err
		}
		c.F = math.Float32frombits(v)
	case ConstString:
		n, err := readU32(r)
		if err != nil {
			return Constant{}, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil && n > 0 {
			return Constant{}, err
		}
		c.S = string(buf)
	case ConstCode:
		co, err := readCode(r)
		if err != nil {
			return Constant{}, err
		}
		c.Code = co
	default:
		return Constant{}, fmt.Errorf("symbol: unknown constant kind %d", kindByte)
	}
	return c, nil
}

func readCode(r *bytes.Reader) (*value.CodeObject, error) {
	localCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	namedCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	mappingLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	mapping := make([]int32, mappingLen)
	for i := range mapping {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		mapping[i] = int32(v)
	}
	instrCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	instrs := make([]bytecode.Instruction, instrCount)
	for i := range instrs {
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		a, err := readU32(r)
		if err != nil {
			return nil, err
		}
		instrs[i] = bytecode.Instruction{Op: bytecode.Opcode(opByte), A: int32(a)}
	}
	lineCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]bytecode.SourceLine, lineCount)
	for i := range lines {
		line, err := readU32(r)
		if err != nil {
			return nil, err
		}
		idx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = bytecode.SourceLine{Line: int32(line), InstructionIdx: int32(idx)}
	}
	return &value.CodeObject{
		Instructions:         instrs,
		Lines:                lines,
		LocalVariablesCount:  int(int32(localCount)),
		NamedParametersCount: int(int32(namedCount)),
		ClosureMapping:       mapping,
	}, nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
