package jit

import "github.com/colorfulnotion/tjit/masm"

// Register roles shared by every piece of generated code.
const (
	regCursor = masm.RBX // current row of all tapes
	regLower  = masm.R14 // first byte of the tape
	regUpper  = masm.R15 // one past the last byte of the tape
	regResult = masm.RAX
	regArg0   = masm.RDI
	regArg1   = masm.RSI
	regArg2   = masm.RDX
)

// trampoline is fixed code built once per engine.
type trampoline struct {
	region Region
	body   []byte
}

// buildEntry emits uint64 entry(cursor, lo, hi). It saves the tape
// registers, calls through the init state's slot and returns the final
// cursor.
func buildEntry(initSlot uint64) []byte {
	a := masm.New(64)
	a.Push64(regCursor)
	a.Push64(regLower)
	a.Push64(regUpper)
	a.Mov64(regCursor, regArg0)
	a.Mov64(regLower, regArg1)
	a.Mov64(regUpper, regArg2)
	a.MovImm64(regArg0, initSlot)
	a.CallMemory(masm.Mem(regArg0))
	a.Mov64(regResult, regCursor)
	a.Pop64(regUpper)
	a.Pop64(regLower)
	a.Pop64(regCursor)
	a.Ret()
	return a.Bytes()
}

// buildCompiler emits the code every uncompiled slot points at. The slot
// being dispatched through is in RDI; the compiled state is jumped to, not
// called, so the transfer that got here completes as if the slot had held
// the compiled code all along.
func buildCompiler(stubs Stubs) []byte {
	a := masm.New(48)
	a.MovImm64(regArg1, stubs.Context)
	a.AddImm32(masm.RSP, -8)
	a.MovImm64(regResult, stubs.Compile)
	a.Call(regResult)
	a.AddImm32(masm.RSP, 8)
	a.JumpIndirect(regResult)
	return a.Bytes()
}

// buildGrow emits the code bounds checks call on a miss. It rebases the
// cursor and reloads both bounds from ctl, where the engine keeps the
// current tape base and size.
func buildGrow(stubs Stubs, ctl uint64) []byte {
	a := masm.New(64)
	a.Mov64(regArg0, regCursor)
	a.MovImm64(regArg1, stubs.Context)
	a.MovImm64(regResult, stubs.Grow)
	a.Call(regResult)
	a.Mov64(regCursor, regResult)
	a.MovImm64(regResult, ctl)
	a.Load64(regLower, masm.Mem(regResult))
	a.Load64(regUpper, masm.MemDisp(regResult, 8))
	a.Add64(regUpper, regLower)
	a.Ret()
	return a.Bytes()
}
