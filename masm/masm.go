package masm

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/tjit/log"
)

// Label is a write offset inside the assembler's buffer.
type Label int

// Jump is the handle of a forward branch whose rel32 field still needs to
// be linked to a Label.
type Jump struct {
	asm   *Assembler
	field int // offset of the rel32 field
	next  int // offset right after the rel32 field; displacements are relative to it
}

// Assembler appends encoded instructions to a byte buffer. All offsets are
// relative to the start of that buffer; the caller copies the finished
// bytes into executable memory.
type Assembler struct {
	buf     []byte
	pending map[int]struct{} // rel32 fields not linked yet
}

// New returns an assembler with room for sizeHint bytes.
func New(sizeHint int) *Assembler {
	return &Assembler{
		buf:     make([]byte, 0, sizeHint),
		pending: make(map[int]struct{}),
	}
}

// Label returns the current write offset.
func (a *Assembler) Label() Label { return Label(len(a.buf)) }

// Unlinked returns how many emitted jumps have not been linked yet.
func (a *Assembler) Unlinked() int { return len(a.pending) }

// Bytes returns the finished code. Every jump must have been linked.
func (a *Assembler) Bytes() []byte {
	if len(a.pending) != 0 {
		log.Error(log.MasmMonitoring, "unlinked jumps", "count", len(a.pending), "len", len(a.buf))
		panic(fmt.Sprintf("masm: %d jump(s) never linked", len(a.pending)))
	}
	log.Trace(log.MasmMonitoring, "assembled", "len", len(a.buf))
	return a.buf
}

func (a *Assembler) emit(b ...byte) {
	a.buf = append(a.buf, b...)
}

func (a *Assembler) emit32(v uint32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
}

func (a *Assembler) emit64(v uint64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
}

// MovImm64 emits mov dst, imm64.
func (a *Assembler) MovImm64(dst Register, imm uint64) {
	checkRegister(dst)
	a.rex(true, 0, 0, dst.ext())
	a.emit(X86_OP_MOV_R_IMM + dst.low())
	a.emit64(imm)
}

// Mov64 emits mov dst, src.
func (a *Assembler) Mov64(dst, src Register) {
	a.rexReg(true, src, dst)
	a.emit(X86_OP_MOV_RM_R)
	a.modRMReg(byte(src), dst)
}

// Load64 emits mov dst, qword [loc].
func (a *Assembler) Load64(dst Register, loc Location) {
	a.rexMem(true, dst, loc)
	a.emit(X86_OP_MOV_R_RM)
	a.modRMMem(byte(dst), loc)
}

// Load8 emits movzx dst32, byte [loc].
func (a *Assembler) Load8(dst Register, loc Location) {
	a.rexMem(false, dst, loc)
	a.emit(X86_OP_TWO_BYTE, X86_OP2_MOVZX_R_RM8)
	a.modRMMem(byte(dst), loc)
}

// Store64 emits mov qword [loc], src.
func (a *Assembler) Store64(loc Location, src Register) {
	a.rexMem(true, src, loc)
	a.emit(X86_OP_MOV_RM_R)
	a.modRMMem(byte(src), loc)
}

// StoreImm8 emits mov byte [loc], imm8.
func (a *Assembler) StoreImm8(loc Location, v byte) {
	a.rexMem(false, 0, loc)
	a.emit(X86_OP_MOV_RM_IMM8)
	a.modRMMem(X86_EXT_MOV, loc)
	a.emit(v)
}

// CmpImm8 emits cmp byte [loc], imm8.
func (a *Assembler) CmpImm8(loc Location, v byte) {
	a.rexMem(false, 0, loc)
	a.emit(X86_OP_GROUP1_RM8_IMM8)
	a.modRMMem(X86_EXT_CMP, loc)
	a.emit(v)
}

// Cmp64 emits cmp x, y and sets flags on x - y.
func (a *Assembler) Cmp64(x, y Register) {
	a.rexReg(true, y, x)
	a.emit(X86_OP_CMP_RM_R)
	a.modRMReg(byte(y), x)
}

// AddImm32 emits add dst, imm32 (sign-extended to 64 bits).
func (a *Assembler) AddImm32(dst Register, imm int32) {
	a.rexReg(true, 0, dst)
	a.emit(X86_OP_GROUP1_RM_IMM32)
	a.modRMReg(X86_EXT_ADD, dst)
	a.emit32(uint32(imm))
}

// Add64 emits add dst, src.
func (a *Assembler) Add64(dst, src Register) {
	a.rexReg(true, dst, src)
	a.emit(X86_OP_ADD_R_RM)
	a.modRMReg(byte(dst), src)
}

// Push64 emits push r.
func (a *Assembler) Push64(r Register) {
	checkRegister(r)
	a.rex(false, 0, 0, r.ext())
	a.emit(X86_OP_PUSH_R + r.low())
}

// Pop64 emits pop r.
func (a *Assembler) Pop64(r Register) {
	checkRegister(r)
	a.rex(false, 0, 0, r.ext())
	a.emit(X86_OP_POP_R + r.low())
}

// Call emits call r.
func (a *Assembler) Call(r Register) {
	a.rexReg(false, 0, r)
	a.emit(X86_OP_GROUP5_RM)
	a.modRMReg(X86_EXT_CALL, r)
}

// CallMemory emits call qword [loc].
func (a *Assembler) CallMemory(loc Location) {
	a.rexMem(false, 0, loc)
	a.emit(X86_OP_GROUP5_RM)
	a.modRMMem(X86_EXT_CALL, loc)
}

// JumpIndirect emits jmp r.
func (a *Assembler) JumpIndirect(r Register) {
	a.rexReg(false, 0, r)
	a.emit(X86_OP_GROUP5_RM)
	a.modRMReg(X86_EXT_JMP, r)
}

// JumpMemory emits jmp qword [loc].
func (a *Assembler) JumpMemory(loc Location) {
	a.rexMem(false, 0, loc)
	a.emit(X86_OP_GROUP5_RM)
	a.modRMMem(X86_EXT_JMP, loc)
}

// Jump32 emits an unconditional jmp rel32 to be linked later.
func (a *Assembler) Jump32() Jump {
	a.emit(X86_OP_JMP_REL32)
	return a.placeholder()
}

// JumpCond32 emits a conditional jcc rel32 to be linked later.
func (a *Assembler) JumpCond32(cond Condition) Jump {
	if cond > CondGreater {
		panic(fmt.Sprintf("masm: invalid condition %d", cond))
	}
	a.emit(X86_OP_TWO_BYTE, X86_OP2_JCC_REL32+byte(cond))
	return a.placeholder()
}

func (a *Assembler) placeholder() Jump {
	field := len(a.buf)
	a.emit32(0)
	a.pending[field] = struct{}{}
	return Jump{asm: a, field: field, next: len(a.buf)}
}

// Link patches j so that it lands on l.
func (a *Assembler) Link(j Jump, l Label) {
	if j.asm != a {
		panic("masm: link of a jump not emitted by this assembler")
	}
	if _, ok := a.pending[j.field]; !ok {
		panic(fmt.Sprintf("masm: jump at offset %d is not pending", j.field))
	}
	if int(l) < 0 || int(l) > len(a.buf) {
		panic(fmt.Sprintf("masm: label %d outside buffer of %d bytes", l, len(a.buf)))
	}
	rel := int32(int(l) - j.next)
	binary.LittleEndian.PutUint32(a.buf[j.field:], uint32(rel))
	delete(a.pending, j.field)
	log.Trace(log.MasmMonitoring, "linked jump", "field", j.field, "rel", rel)
}

// Ret emits ret.
func (a *Assembler) Ret() {
	a.emit(X86_OP_RET)
}

// Trap emits int3.
func (a *Assembler) Trap() {
	a.emit(X86_OP_INT3)
}
