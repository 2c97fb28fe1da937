package masm

import "fmt"

// Register is an x86-64 general purpose register number (0-15).
type Register uint8

const (
	RAX Register = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var registerNames = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// low returns the 3 bits that go into ModRM, SIB or the opcode byte.
func (r Register) low() byte { return byte(r) & 0x7 }

// ext returns the bit that goes into REX.R, REX.X or REX.B.
func (r Register) ext() byte { return byte(r) >> 3 & 0x1 }

func (r Register) valid() bool { return r <= R15 }

// Condition is the low nibble of a Jcc opcode.
type Condition byte

const (
	CondOverflow Condition = iota
	CondNotOverflow
	CondBelow
	CondNotBelow
	CondEqual
	CondNotEqual
	CondNotAbove
	CondAbove
	CondSign
	CondNotSign
	CondParityEven
	CondParityOdd
	CondLess
	CondNotLess
	CondNotGreater
	CondGreater
)

// Location is a memory operand: [Base + Index*Scale + Disp].
// A zero Scale means the operand has no index register.
type Location struct {
	Base  Register
	Index Register
	Scale int
	Disp  int32
}

// Mem addresses [base].
func Mem(base Register) Location {
	return Location{Base: base}
}

// MemDisp addresses [base + disp].
func MemDisp(base Register, disp int32) Location {
	return Location{Base: base, Disp: disp}
}

// MemIndex addresses [base + index*scale + disp].
func MemIndex(base, index Register, scale int, disp int32) Location {
	return Location{Base: base, Index: index, Scale: scale, Disp: disp}
}

func (l Location) hasIndex() bool { return l.Scale != 0 }

func (l Location) String() string {
	s := "[" + l.Base.String()
	if l.hasIndex() {
		s += fmt.Sprintf("+%s*%d", l.Index, l.Scale)
	}
	if l.Disp != 0 {
		s += fmt.Sprintf("%+d", l.Disp)
	}
	return s + "]"
}
