package jit

import (
	"encoding/binary"
	"fmt"
)

type slotKind uint8

const (
	slotUncompiled slotKind = iota
	slotCompiled
)

// dispatchSlot shadows one table entry on the Go side.
type dispatchSlot struct {
	kind slotKind
	code Region
	body []byte
}

// dispatchTable holds one 8-byte code address per state. Every entry starts
// at the compiler trampoline and is overwritten once, when its state is
// compiled. Generated code transfers control with jmp [slot].
type dispatchTable struct {
	region   Region
	slots    []dispatchSlot
	compiler uint64
}

func newDispatchTable(region Region, states int, compiler uint64) (*dispatchTable, error) {
	t := &dispatchTable{region: region, slots: make([]dispatchSlot, states), compiler: compiler}
	entries := make([]byte, 8*states)
	for i := 0; i < states; i++ {
		binary.LittleEndian.PutUint64(entries[8*i:], compiler)
	}
	if _, err := region.WriteAt(entries, 0); err != nil {
		return nil, fmt.Errorf("initialize dispatch table: %w", err)
	}
	return t, nil
}

func (t *dispatchTable) slotAddr(state int) uint64 {
	return t.region.Addr() + 8*uint64(state)
}

// stateOf maps a slot address back to its state.
func (t *dispatchTable) stateOf(slot uint64) (int, error) {
	base := t.region.Addr()
	if slot < base || (slot-base)%8 != 0 || (slot-base)/8 >= uint64(len(t.slots)) {
		return 0, fmt.Errorf("%w: 0x%x", ErrInvalidSlot, slot)
	}
	return int((slot - base) / 8), nil
}

func (t *dispatchTable) load(state int) (uint64, error) {
	var b [8]byte
	if _, err := t.region.ReadAt(b[:], 8*int64(state)); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// checkUncompiled enforces that a state is compiled at most once.
func (t *dispatchTable) checkUncompiled(state int) error {
	if t.slots[state].kind != slotUncompiled {
		return fmt.Errorf("%w: state %d", ErrRecompile, state)
	}
	cur, err := t.load(state)
	if err != nil {
		return err
	}
	if cur != t.compiler {
		return fmt.Errorf("%w: state %d slot holds 0x%x", ErrRecompile, state, cur)
	}
	return nil
}

func (t *dispatchTable) install(state int, code Region, body []byte) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], code.Addr())
	if _, err := t.region.WriteAt(b[:], 8*int64(state)); err != nil {
		return fmt.Errorf("patch slot %d: %w", state, err)
	}
	t.slots[state] = dispatchSlot{kind: slotCompiled, code: code, body: body}
	return nil
}

func (t *dispatchTable) compiled(state int) bool {
	return t.slots[state].kind == slotCompiled
}
