package jit

import (
	"fmt"

	"github.com/colorfulnotion/tjit/log"
	"github.com/colorfulnotion/tjit/masm"
)

// emitState generates the body of one state:
//
//	trace(ctx, state, cursor)
//	ret                                 halting state only
//	grow if cursor < lower
//	grow if cursor >= upper
//	for each rule, most specific first:
//	  cmp byte [cursor+tape], symbol; jne next rule
//	  mov byte [cursor+tape], symbol
//	  add cursor, delta*columns
//	  jmp [slot of to]
//	int3
func (e *Engine) emitState(state int) []byte {
	m := e.fn.Machine
	a := masm.New(256)

	// The body is entered with RSP 8 bytes off 16-byte alignment.
	a.MovImm64(regArg0, e.stubs.Context)
	a.MovImm64(regArg1, uint64(state))
	a.Mov64(regArg2, regCursor)
	a.MovImm64(regResult, e.stubs.Trace)
	a.AddImm32(masm.RSP, -8)
	a.Call(regResult)
	a.AddImm32(masm.RSP, 8)

	if state == m.Halt {
		a.Ret()
		return a.Bytes()
	}

	a.Cmp64(regCursor, regLower)
	low := a.JumpCond32(masm.CondNotBelow)
	a.MovImm64(regResult, e.grow.region.Addr())
	a.Call(regResult)
	a.Link(low, a.Label())

	a.Cmp64(regCursor, regUpper)
	high := a.JumpCond32(masm.CondBelow)
	a.MovImm64(regResult, e.grow.region.Addr())
	a.Call(regResult)
	a.Link(high, a.Label())

	for _, r := range m.RulesFrom(state) {
		misses := make([]masm.Jump, 0, len(r.Condition))
		for _, p := range r.Condition {
			a.CmpImm8(masm.MemDisp(regCursor, int32(p.Tape)), p.Symbol)
			misses = append(misses, a.JumpCond32(masm.CondNotEqual))
		}
		for _, p := range r.Action {
			a.StoreImm8(masm.MemDisp(regCursor, int32(p.Tape)), p.Symbol)
		}
		a.AddImm32(regCursor, int32(r.Delta*e.columns))
		a.MovImm64(regArg0, e.table.slotAddr(r.To))
		a.JumpMemory(masm.Mem(regArg0))

		next := a.Label()
		for _, j := range misses {
			a.Link(j, next)
		}
	}
	a.Trap()
	return a.Bytes()
}

// compileState is reached through the compiler trampoline with the address
// of the slot being dispatched through. It returns the new code address.
func (e *Engine) compileState(slot uint64) (uint64, error) {
	state, err := e.table.stateOf(slot)
	if err != nil {
		return 0, err
	}
	if err := e.table.checkUncompiled(state); err != nil {
		return 0, err
	}

	body := e.emitState(state)
	region, err := e.host.AllocCode(body)
	if err != nil {
		return 0, fmt.Errorf("state %d: %w", state, err)
	}
	e.code = append(e.code, region)
	if err := e.table.install(state, region, body); err != nil {
		return 0, err
	}
	e.stats.Compiles[state]++
	log.Debug(log.JitMonitoring, "compiling state", "fn", e.fn.Name, "state", state, "bytes", len(body),
		"addr", fmt.Sprintf("0x%x", region.Addr()))
	return region.Addr(), nil
}
