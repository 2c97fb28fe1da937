package masm

import "fmt"

// rex emits a REX prefix when any of its bits are set. r, x and b are the
// high bits of the ModRM.reg, SIB.index and ModRM.rm/SIB.base registers.
func (a *Assembler) rex(w bool, r, x, b byte) {
	rex := byte(X86_REX_BASE)
	if w {
		rex |= X86_REX_W
	}
	if r != 0 {
		rex |= X86_REX_R
	}
	if x != 0 {
		rex |= X86_REX_X
	}
	if b != 0 {
		rex |= X86_REX_B
	}
	if rex != X86_REX_BASE {
		a.emit(rex)
	}
}

// rexReg is the prefix for a register-direct ModRM form.
func (a *Assembler) rexReg(w bool, reg, rm Register) {
	checkRegister(reg)
	checkRegister(rm)
	a.rex(w, reg.ext(), 0, rm.ext())
}

// rexMem is the prefix for a memory ModRM form.
func (a *Assembler) rexMem(w bool, reg Register, loc Location) {
	checkRegister(reg)
	checkLocation(loc)
	var x byte
	if loc.hasIndex() {
		x = loc.Index.ext()
	}
	a.rex(w, reg.ext(), x, loc.Base.ext())
}

func (a *Assembler) modRMReg(reg byte, rm Register) {
	a.emit(X86_MOD_REGISTER<<6 | (reg&0x7)<<3 | rm.low())
}

// modRMMem emits ModRM, the optional SIB byte and the displacement for loc.
func (a *Assembler) modRMMem(reg byte, loc Location) {
	mod := byte(X86_MOD_INDIRECT_DISP32)
	switch {
	case loc.Disp == 0 && loc.Base.low() != RBP.low():
		// [rbp] and [r13] have no mod 00 form; they take a zero disp8.
		mod = X86_MOD_INDIRECT
	case loc.Disp >= -128 && loc.Disp <= 127:
		mod = X86_MOD_INDIRECT_DISP8
	}

	if loc.hasIndex() || loc.Base.low() == X86_RM_SIB {
		a.emit(mod<<6 | (reg&0x7)<<3 | X86_RM_SIB)
		index, ss := byte(X86_SIB_NO_IDX), byte(X86_SS_MULT1)
		if loc.hasIndex() {
			index, ss = loc.Index.low(), scaleBits(loc.Scale)
		}
		a.emit(ss<<6 | index<<3 | loc.Base.low())
	} else {
		a.emit(mod<<6 | (reg&0x7)<<3 | loc.Base.low())
	}

	switch mod {
	case X86_MOD_INDIRECT_DISP8:
		a.emit(byte(int8(loc.Disp)))
	case X86_MOD_INDIRECT_DISP32:
		a.emit32(uint32(loc.Disp))
	}
}

func scaleBits(scale int) byte {
	switch scale {
	case 1:
		return X86_SS_MULT1
	case 2:
		return X86_SS_MULT2
	case 4:
		return X86_SS_MULT4
	case 8:
		return X86_SS_MULT8
	}
	panic(fmt.Sprintf("masm: unsupported scale %d", scale))
}

func checkRegister(r Register) {
	if !r.valid() {
		panic(fmt.Sprintf("masm: invalid register %d", uint8(r)))
	}
}

func checkLocation(loc Location) {
	checkRegister(loc.Base)
	if !loc.hasIndex() {
		return
	}
	checkRegister(loc.Index)
	scaleBits(loc.Scale)
	if loc.Index == RSP {
		panic("masm: rsp cannot be an index register")
	}
}
