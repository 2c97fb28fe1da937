package masm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Instruction is one decoded instruction of emitted code.
type Instruction struct {
	Offset int
	Len    int
	Inst   x86asm.Inst
}

// Decode decodes code as 64-bit x86 until the end of the buffer.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for offset := 0; offset < len(code); {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			return out, fmt.Errorf("decode at 0x%04x: %w", offset, err)
		}
		if inst.Op == 0 {
			return out, fmt.Errorf("decode at 0x%04x: prefix without an instruction", offset)
		}
		out = append(out, Instruction{Offset: offset, Len: inst.Len, Inst: inst})
		offset += inst.Len
	}
	return out, nil
}

// Disassemble renders code one instruction per line with its offset and
// raw bytes. Undecodable bytes are printed as db.
func Disassemble(code []byte) string {
	var sb strings.Builder
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 64)
		// A trailing prefix decodes with no opcode.
		if err != nil || inst.Op == 0 {
			sb.WriteString(fmt.Sprintf("0x%04x: db 0x%02x\n", offset, code[offset]))
			offset++
			continue
		}

		hexBytes := make([]string, 0, inst.Len)
		for i := 0; i < inst.Len; i++ {
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", code[offset+i]))
		}
		sb.WriteString(fmt.Sprintf(
			"0x%04x: %-30s %s\n",
			offset,
			strings.Join(hexBytes, " "),
			x86asm.IntelSyntax(inst, uint64(offset), nil),
		))
		offset += inst.Len
	}
	return sb.String()
}
