package masm

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/colorfulnotion/tjit/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestEncodings(t *testing.T) {
	testCases := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"mov rbx, imm64", func(a *Assembler) { a.MovImm64(RBX, 0x1122334455667788) },
			[]byte{0x48, 0xBB, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
		{"mov r14, imm64", func(a *Assembler) { a.MovImm64(R14, 1) },
			[]byte{0x49, 0xBE, 1, 0, 0, 0, 0, 0, 0, 0}},
		{"mov rbx, rdi", func(a *Assembler) { a.Mov64(RBX, RDI) }, []byte{0x48, 0x89, 0xFB}},
		{"mov r14, rsi", func(a *Assembler) { a.Mov64(R14, RSI) }, []byte{0x49, 0x89, 0xF6}},
		{"mov rax, rbx", func(a *Assembler) { a.Mov64(RAX, RBX) }, []byte{0x48, 0x89, 0xD8}},
		{"cmp rbx, r14", func(a *Assembler) { a.Cmp64(RBX, R14) }, []byte{0x4C, 0x39, 0xF3}},
		{"cmp rbx, r15", func(a *Assembler) { a.Cmp64(RBX, R15) }, []byte{0x4C, 0x39, 0xFB}},
		{"add rbx, 6", func(a *Assembler) { a.AddImm32(RBX, 6) }, []byte{0x48, 0x81, 0xC3, 6, 0, 0, 0}},
		{"add rsp, -8", func(a *Assembler) { a.AddImm32(RSP, -8) }, []byte{0x48, 0x81, 0xC4, 0xF8, 0xFF, 0xFF, 0xFF}},
		{"add r15, r14", func(a *Assembler) { a.Add64(R15, R14) }, []byte{0x4D, 0x03, 0xFE}},
		{"push rbx", func(a *Assembler) { a.Push64(RBX) }, []byte{0x53}},
		{"push r14", func(a *Assembler) { a.Push64(R14) }, []byte{0x41, 0x56}},
		{"pop r15", func(a *Assembler) { a.Pop64(R15) }, []byte{0x41, 0x5F}},
		{"call rax", func(a *Assembler) { a.Call(RAX) }, []byte{0xFF, 0xD0}},
		{"call r11", func(a *Assembler) { a.Call(R11) }, []byte{0x41, 0xFF, 0xD3}},
		{"call [rdi]", func(a *Assembler) { a.CallMemory(Mem(RDI)) }, []byte{0xFF, 0x17}},
		{"jmp rax", func(a *Assembler) { a.JumpIndirect(RAX) }, []byte{0xFF, 0xE0}},
		{"jmp [rdi]", func(a *Assembler) { a.JumpMemory(Mem(RDI)) }, []byte{0xFF, 0x27}},
		{"mov rax, [rdi]", func(a *Assembler) { a.Load64(RAX, Mem(RDI)) }, []byte{0x48, 0x8B, 0x07}},
		{"mov r14, [r14]", func(a *Assembler) { a.Load64(R14, Mem(R14)) }, []byte{0x4D, 0x8B, 0x36}},
		{"mov byte [rbx], 1", func(a *Assembler) { a.StoreImm8(MemDisp(RBX, 0), 1) }, []byte{0xC6, 0x03, 0x01}},
		{"mov byte [rbx+2], 1", func(a *Assembler) { a.StoreImm8(MemDisp(RBX, 2), 1) }, []byte{0xC6, 0x43, 0x02, 0x01}},
		{"mov byte [rbx+0x200], 1", func(a *Assembler) { a.StoreImm8(MemDisp(RBX, 0x200), 1) },
			[]byte{0xC6, 0x83, 0x00, 0x02, 0x00, 0x00, 0x01}},
		{"cmp byte [rbx+1], 2", func(a *Assembler) { a.CmpImm8(MemDisp(RBX, 1), 2) }, []byte{0x80, 0x7B, 0x01, 0x02}},
		{"cmp byte [rbx-0x1000], 2", func(a *Assembler) { a.CmpImm8(MemDisp(RBX, -0x1000), 2) },
			[]byte{0x80, 0xBB, 0x00, 0xF0, 0xFF, 0xFF, 0x02}},
		{"cmp byte [r12], 0", func(a *Assembler) { a.CmpImm8(Mem(R12), 0) }, []byte{0x41, 0x80, 0x3C, 0x24, 0x00}},
		{"cmp byte [r13], 0", func(a *Assembler) { a.CmpImm8(Mem(R13), 0) }, []byte{0x41, 0x80, 0x7D, 0x00, 0x00}},
		{"mov byte [rbx+r9*8], 1", func(a *Assembler) { a.StoreImm8(MemIndex(RBX, R9, 8, 0), 1) },
			[]byte{0x42, 0xC6, 0x04, 0xCB, 0x01}},
		{"movzx eax, byte [r8+rcx*2+16]", func(a *Assembler) { a.Load8(RAX, MemIndex(R8, RCX, 2, 16)) },
			[]byte{0x41, 0x0F, 0xB6, 0x44, 0x48, 0x10}},
		{"mov [rsp+8], r15", func(a *Assembler) { a.Store64(MemDisp(RSP, 8), R15) }, []byte{0x4C, 0x89, 0x7C, 0x24, 0x08}},
		{"ret", func(a *Assembler) { a.Ret() }, []byte{0xC3}},
		{"int3", func(a *Assembler) { a.Trap() }, []byte{0xCC}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := New(16)
			tc.emit(a)
			require.Equal(t, tc.want, a.Bytes())
		})
	}
}

func TestForwardJumpLink(t *testing.T) {
	a := New(16)
	j := a.JumpCond32(CondNotEqual)
	require.Equal(t, 1, a.Unlinked())
	a.Ret()
	a.Link(j, a.Label())
	require.Equal(t, []byte{0x0F, 0x85, 0x01, 0x00, 0x00, 0x00, 0xC3}, a.Bytes())

	insts, err := Decode(a.Bytes())
	require.NoError(t, err)
	require.Equal(t, x86asm.JNE, insts[0].Inst.Op)
	require.Equal(t, x86asm.Rel(1), insts[0].Inst.Args[0])
}

func TestBackwardJumpLink(t *testing.T) {
	a := New(16)
	top := a.Label()
	a.Ret()
	j := a.Jump32()
	a.Link(j, top)
	require.Equal(t, []byte{0xC3, 0xE9, 0xFA, 0xFF, 0xFF, 0xFF}, a.Bytes())
}

func TestConditionOpcodes(t *testing.T) {
	ops := map[Condition]x86asm.Op{
		CondEqual:    x86asm.JE,
		CondNotEqual: x86asm.JNE,
		CondLess:     x86asm.JL,
		CondNotLess:  x86asm.JGE,
		CondBelow:    x86asm.JB,
		CondGreater:  x86asm.JG,
	}
	for cond, op := range ops {
		a := New(8)
		a.Link(a.JumpCond32(cond), a.Label())
		insts, err := Decode(a.Bytes())
		require.NoError(t, err)
		require.Len(t, insts, 1)
		require.Equal(t, op, insts[0].Inst.Op, "condition %d", cond)
	}
}

func TestAssertions(t *testing.T) {
	t.Run("link zero jump", func(t *testing.T) {
		a := New(8)
		require.Panics(t, func() { a.Link(Jump{}, a.Label()) })
	})
	t.Run("link foreign jump", func(t *testing.T) {
		a, b := New(8), New(8)
		j := b.Jump32()
		require.Panics(t, func() { a.Link(j, a.Label()) })
	})
	t.Run("link twice", func(t *testing.T) {
		a := New(8)
		j := a.Jump32()
		a.Link(j, a.Label())
		require.Panics(t, func() { a.Link(j, a.Label()) })
	})
	t.Run("label past end", func(t *testing.T) {
		a := New(8)
		j := a.Jump32()
		require.Panics(t, func() { a.Link(j, Label(100)) })
	})
	t.Run("unlinked bytes", func(t *testing.T) {
		a := New(8)
		a.Jump32()
		require.Panics(t, func() { a.Bytes() })
	})
	t.Run("bad scale", func(t *testing.T) {
		a := New(8)
		require.Panics(t, func() { a.StoreImm8(MemIndex(RBX, RCX, 3, 0), 1) })
	})
	t.Run("rsp index", func(t *testing.T) {
		a := New(8)
		require.Panics(t, func() { a.CmpImm8(MemIndex(RBX, RSP, 1, 0), 1) })
	})
	t.Run("bad register", func(t *testing.T) {
		a := New(8)
		require.Panics(t, func() { a.Mov64(Register(16), RAX) })
	})
}

func x86Reg(r Register) x86asm.Reg {
	return x86asm.RAX + x86asm.Reg(r)
}

// Every base/index combination must decode back to the operand it was
// built from, which exercises the REX.B/REX.X split and the SIB escapes.
func TestMemoryOperandsDecode(t *testing.T) {
	disps := []int32{0, 5, -100, 0x1234, -0x12345678}
	for base := RAX; base <= R15; base++ {
		for _, disp := range disps {
			locs := []Location{MemDisp(base, disp)}
			for index := RAX; index <= R15; index++ {
				if index == RSP {
					continue
				}
				locs = append(locs, MemIndex(base, index, 1<<(int(index)%4), disp))
			}
			for _, loc := range locs {
				a := New(16)
				a.CmpImm8(loc, 2)
				insts, err := Decode(a.Bytes())
				require.NoError(t, err, loc.String())
				require.Len(t, insts, 1, loc.String())
				inst := insts[0].Inst
				require.Equal(t, x86asm.CMP, inst.Op, loc.String())
				mem, ok := inst.Args[0].(x86asm.Mem)
				require.True(t, ok, loc.String())
				require.Equal(t, x86Reg(loc.Base), mem.Base, loc.String())
				// x86asm reports disp32 zero-extended.
				require.Equal(t, loc.Disp, int32(mem.Disp), loc.String())
				if loc.hasIndex() {
					require.Equal(t, x86Reg(loc.Index), mem.Index, loc.String())
					require.Equal(t, uint8(loc.Scale), mem.Scale, loc.String())
				} else {
					require.Equal(t, x86asm.Reg(0), mem.Index, loc.String())
				}
				require.Equal(t, x86asm.Imm(2), inst.Args[1], loc.String())
			}
		}
	}
}

func TestRegisterPairsDecode(t *testing.T) {
	for dst := RAX; dst <= R15; dst++ {
		for src := RAX; src <= R15; src++ {
			name := fmt.Sprintf("%s,%s", dst, src)

			a := New(8)
			a.Mov64(dst, src)
			insts, err := Decode(a.Bytes())
			require.NoError(t, err, name)
			require.Equal(t, x86asm.MOV, insts[0].Inst.Op, name)
			require.Equal(t, x86Reg(dst), insts[0].Inst.Args[0], name)
			require.Equal(t, x86Reg(src), insts[0].Inst.Args[1], name)

			a = New(8)
			a.Cmp64(dst, src)
			insts, err = Decode(a.Bytes())
			require.NoError(t, err, name)
			require.Equal(t, x86asm.CMP, insts[0].Inst.Op, name)
			require.Equal(t, x86Reg(dst), insts[0].Inst.Args[0], name)
			require.Equal(t, x86Reg(src), insts[0].Inst.Args[1], name)

			a = New(8)
			a.Add64(dst, src)
			insts, err = Decode(a.Bytes())
			require.NoError(t, err, name)
			require.Equal(t, x86asm.ADD, insts[0].Inst.Op, name)
			require.Equal(t, x86Reg(dst), insts[0].Inst.Args[0], name)
			require.Equal(t, x86Reg(src), insts[0].Inst.Args[1], name)
		}

		a := New(16)
		a.MovImm64(dst, 0xdeadbeefcafe)
		a.Call(dst)
		a.JumpIndirect(dst)
		insts, err := Decode(a.Bytes())
		require.NoError(t, err, dst.String())
		require.Len(t, insts, 3)
		require.Equal(t, x86Reg(dst), insts[0].Inst.Args[0])
		require.Equal(t, x86asm.Imm(0xdeadbeefcafe), insts[0].Inst.Args[1])
		require.Equal(t, x86asm.CALL, insts[1].Inst.Op)
		require.Equal(t, x86Reg(dst), insts[1].Inst.Args[0])
		require.Equal(t, x86asm.JMP, insts[2].Inst.Op)
		require.Equal(t, x86Reg(dst), insts[2].Inst.Args[0])
	}
}

func TestDisassemble(t *testing.T) {
	a := New(16)
	a.Push64(RBX)
	a.Ret()
	out := Disassemble(a.Bytes())
	require.Contains(t, out, "0x0000: 53")
	require.Contains(t, out, "0x0001: c3")

	// A lone prefix decodes without error but is not an instruction.
	require.Equal(t, "0x0000: db 0x48\n", Disassemble([]byte{0x48}))
	_, err := Decode([]byte{0x48})
	require.Error(t, err)
}

func TestMasmLogging(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Root()
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(&buf, log.LevelTrace, false)))
	defer log.SetDefault(prev)

	a := New(16)
	j := a.Jump32()
	a.Ret()
	a.Link(j, a.Label())
	a.Bytes()
	require.Empty(t, buf.String(), "masm logging is off by default")

	log.EnableModule(log.MasmMonitoring)
	defer log.DisableModule(log.MasmMonitoring)
	a = New(16)
	j = a.JumpCond32(CondEqual)
	a.Link(j, a.Label())
	code := a.Bytes()
	out := buf.String()
	require.Contains(t, out, "msg=\"linked jump\"")
	require.Contains(t, out, "module=masm")
	require.Contains(t, out, "rel=0")
	require.Contains(t, out, fmt.Sprintf("len=%d", len(code)))

	a = New(8)
	a.Jump32()
	require.Panics(t, func() { a.Bytes() })
	require.Contains(t, buf.String(), "msg=\"unlinked jumps\"")
}
