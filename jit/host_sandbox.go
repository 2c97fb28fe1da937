//go:build unicorn

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/tjit/log"
	"github.com/colorfulnotion/tjit/masm"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// Guest address space of the sandbox.
const (
	sandboxStubBase  = uint64(0x0010_0000) // one page of ret stubs
	sandboxStackBase = uint64(0x0020_0000)
	sandboxStackSize = uint64(0x0010_0000)
	sandboxCodeBase  = uint64(0x1000_0000)
	sandboxDataBase  = uint64(0x4000_0000)

	sandboxCompileOff = 0x00
	sandboxGrowOff    = 0x10
	sandboxTraceOff   = 0x20
	sandboxHaltOff    = 0x80
)

type sandboxRegion struct {
	host *sandboxHost
	addr uint64
	size int
}

func (r *sandboxRegion) Addr() uint64 { return r.addr }
func (r *sandboxRegion) Size() int    { return r.size }

func (r *sandboxRegion) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(r.size) {
		return 0, fmt.Errorf("read of %d bytes at %d outside region of %d", len(p), off, r.size)
	}
	data, err := r.host.mu.MemRead(r.addr+uint64(off), uint64(len(p)))
	if err != nil {
		return 0, fmt.Errorf("MemRead: %w", err)
	}
	return copy(p, data), nil
}

func (r *sandboxRegion) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(r.size) {
		return 0, fmt.Errorf("write of %d bytes at %d outside region of %d", len(p), off, r.size)
	}
	if err := r.host.mu.MemWrite(r.addr+uint64(off), p); err != nil {
		return 0, fmt.Errorf("MemWrite: %w", err)
	}
	return len(p), nil
}

// sandboxHost runs generated code inside a Unicorn x86-64 emulator. Stub
// calls land on ret instructions in the stub page; a code hook performs the
// engine callback there and places the result in RAX. A trap stops the
// emulator and surfaces as ErrUnmatchedState.
type sandboxHost struct {
	mu       uc.Unicorn
	codeNext uint64
	dataNext uint64
	bindings map[uint64]Callbacks
	lastCtx  uint64
	err      error
}

func newSandboxHost() (Host, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}
	h := &sandboxHost{mu: mu, codeNext: sandboxCodeBase, dataNext: sandboxDataBase, bindings: make(map[uint64]Callbacks)}

	stubs := make([]byte, 0x1000)
	for i := range stubs {
		stubs[i] = masm.X86_OP_RET
	}
	if err := mu.MemMap(sandboxStubBase, 0x1000); err != nil {
		mu.Close()
		return nil, fmt.Errorf("map stub page: %w", err)
	}
	if err := mu.MemWrite(sandboxStubBase, stubs); err != nil {
		mu.Close()
		return nil, fmt.Errorf("write stub page: %w", err)
	}
	if err := mu.MemProtect(sandboxStubBase, 0x1000, uc.PROT_READ|uc.PROT_EXEC); err != nil {
		mu.Close()
		return nil, fmt.Errorf("protect stub page: %w", err)
	}
	if err := mu.MemMap(sandboxStackBase, sandboxStackSize); err != nil {
		mu.Close()
		return nil, fmt.Errorf("stack MemMap: %w", err)
	}
	if err := mu.MemProtect(sandboxStackBase, sandboxStackSize, uc.PROT_READ|uc.PROT_WRITE); err != nil {
		mu.Close()
		return nil, fmt.Errorf("stack MemProtect: %w", err)
	}

	if _, err := mu.HookAdd(uc.HOOK_CODE, h.onStub, sandboxStubBase, sandboxStubBase+sandboxTraceOff); err != nil {
		mu.Close()
		return nil, fmt.Errorf("add stub hook: %w", err)
	}
	if _, err := mu.HookAdd(uc.HOOK_INTR, h.onInterrupt, 1, 0); err != nil {
		mu.Close()
		return nil, fmt.Errorf("add interrupt hook: %w", err)
	}
	return h, nil
}

func (h *sandboxHost) fail(err error) {
	if h.err == nil {
		h.err = err
	}
	h.mu.Stop()
}

func (h *sandboxHost) onStub(mu uc.Unicorn, addr uint64, size uint32) {
	rdi, _ := mu.RegRead(uc.X86_REG_RDI)
	rsi, _ := mu.RegRead(uc.X86_REG_RSI)
	rdx, _ := mu.RegRead(uc.X86_REG_RDX)

	// Trace takes the context first, compile and grow second.
	ctx := rsi
	if addr-sandboxStubBase == sandboxTraceOff {
		ctx = rdi
	}
	cb, ok := h.bindings[ctx]
	if !ok {
		h.fail(fmt.Errorf("%w 0x%x", ErrNotBound, ctx))
		return
	}

	switch addr - sandboxStubBase {
	case sandboxCompileOff:
		code, err := cb.compileState(rdi)
		if err != nil {
			h.fail(err)
			return
		}
		mu.RegWrite(uc.X86_REG_RAX, code)
	case sandboxGrowOff:
		cursor, err := cb.growTape(rdi)
		if err != nil {
			h.fail(err)
			return
		}
		mu.RegWrite(uc.X86_REG_RAX, cursor)
	case sandboxTraceOff:
		cb.trace(int(rsi), rdx)
	}
}

func (h *sandboxHost) onInterrupt(mu uc.Unicorn, intno uint32) {
	rip, _ := mu.RegRead(uc.X86_REG_RIP)
	rbx, _ := mu.RegRead(uc.X86_REG_RBX)
	h.fail(fmt.Errorf("%w: trap %d at 0x%x, cursor 0x%x", ErrUnmatchedState, intno, rip, rbx))
}

// mapAt maps pages at *next and advances it past a guard page.
func (h *sandboxHost) mapAt(next *uint64, size int, prot int) (uint64, error) {
	length := uint64(pageAlign(size))
	addr := *next
	if err := h.mu.MemMap(addr, length); err != nil {
		return 0, fmt.Errorf("%w: MemMap %d bytes: %v", ErrOutOfMemory, length, err)
	}
	if err := h.mu.MemProtect(addr, length, prot); err != nil {
		return 0, fmt.Errorf("MemProtect: %w", err)
	}
	*next += length + 0x1000
	return addr, nil
}

func (h *sandboxHost) AllocCode(code []byte) (Region, error) {
	addr, err := h.mapAt(&h.codeNext, len(code), uc.PROT_READ|uc.PROT_WRITE)
	if err != nil {
		return nil, err
	}
	if err := h.mu.MemWrite(addr, code); err != nil {
		return nil, fmt.Errorf("write code: %w", err)
	}
	if err := h.mu.MemProtect(addr, uint64(pageAlign(len(code))), uc.PROT_READ|uc.PROT_EXEC); err != nil {
		return nil, fmt.Errorf("protect code: %w", err)
	}
	log.Trace(log.HostMonitoring, "mapped sandbox code", "addr", fmt.Sprintf("0x%x", addr), "len", len(code))
	return &sandboxRegion{host: h, addr: addr, size: len(code)}, nil
}

func (h *sandboxHost) AllocData(size int) (Region, error) {
	addr, err := h.mapAt(&h.dataNext, size, uc.PROT_READ|uc.PROT_WRITE)
	if err != nil {
		return nil, err
	}
	return &sandboxRegion{host: h, addr: addr, size: size}, nil
}

// Resize always moves the region, like a realloc that cannot grow in place.
func (h *sandboxHost) Resize(r Region, size int) (Region, error) {
	old := r.(*sandboxRegion)
	data, err := h.mu.MemRead(old.addr, uint64(old.size))
	if err != nil {
		return nil, fmt.Errorf("MemRead: %w", err)
	}
	addr, err := h.mapAt(&h.dataNext, size, uc.PROT_READ|uc.PROT_WRITE)
	if err != nil {
		return nil, err
	}
	if err := h.mu.MemWrite(addr, data); err != nil {
		return nil, fmt.Errorf("MemWrite: %w", err)
	}
	if err := h.mu.MemUnmap(old.addr, uint64(pageAlign(old.size))); err != nil {
		return nil, fmt.Errorf("MemUnmap: %w", err)
	}
	old.addr, old.size = addr, size
	return old, nil
}

func (h *sandboxHost) Free(r Region) error {
	sr := r.(*sandboxRegion)
	if sr.size < 0 {
		return nil
	}
	err := h.mu.MemUnmap(sr.addr, uint64(pageAlign(sr.size)))
	sr.size = -1
	return err
}

func (h *sandboxHost) Bind(cb Callbacks) (Stubs, error) {
	h.lastCtx++
	h.bindings[h.lastCtx] = cb
	return Stubs{
		Compile: sandboxStubBase + sandboxCompileOff,
		Grow:    sandboxStubBase + sandboxGrowOff,
		Trace:   sandboxStubBase + sandboxTraceOff,
		Context: h.lastCtx,
	}, nil
}

func (h *sandboxHost) Unbind(ctx uint64) error {
	if _, ok := h.bindings[ctx]; !ok {
		return fmt.Errorf("%w 0x%x", ErrNotBound, ctx)
	}
	delete(h.bindings, ctx)
	return nil
}

// Enter calls entry with a return address that stops the emulator.
func (h *sandboxHost) Enter(entry, cursor, lo, hi uint64) (uint64, error) {
	h.err = nil
	halt := sandboxStubBase + sandboxHaltOff
	rsp := sandboxStackBase + sandboxStackSize - 8

	var ret [8]byte
	binary.LittleEndian.PutUint64(ret[:], halt)
	if err := h.mu.MemWrite(rsp, ret[:]); err != nil {
		return 0, fmt.Errorf("write return address: %w", err)
	}
	for reg, v := range map[int]uint64{
		uc.X86_REG_RSP: rsp,
		uc.X86_REG_RDI: cursor,
		uc.X86_REG_RSI: lo,
		uc.X86_REG_RDX: hi,
	} {
		if err := h.mu.RegWrite(reg, v); err != nil {
			return 0, fmt.Errorf("set register %d: %w", reg, err)
		}
	}

	err := h.mu.Start(entry, halt)
	if h.err != nil {
		return 0, h.err
	}
	if err != nil {
		return 0, fmt.Errorf("emulation failed: %w", err)
	}
	rip, _ := h.mu.RegRead(uc.X86_REG_RIP)
	if rip != halt {
		return 0, fmt.Errorf("emulation stopped at 0x%x", rip)
	}
	return h.mu.RegRead(uc.X86_REG_RAX)
}

func (h *sandboxHost) Close() error {
	if h.mu == nil {
		return nil
	}
	err := h.mu.Close()
	h.mu = nil
	return err
}
