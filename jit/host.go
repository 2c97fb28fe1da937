package jit

import "fmt"

// Region is a block of memory owned by a Host. Addr is the address the
// generated code sees; the engine reads and writes through ReadAt/WriteAt.
type Region interface {
	Addr() uint64
	Size() int
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Stubs are the addresses generated code calls to reach the engine.
//
//	Compile(slot, ctx) uint64      returns the code address for the slot's state
//	Grow(cursor, ctx) uint64       returns the cursor rebased onto the grown tape
//	Trace(ctx, state, cursor)      instrumentation, no result
type Stubs struct {
	Compile uint64
	Grow    uint64
	Trace   uint64
	Context uint64
}

// Callbacks is what a Host invokes when generated code calls a stub.
type Callbacks interface {
	compileState(slot uint64) (uint64, error)
	growTape(cursor uint64) (uint64, error)
	trace(state int, cursor uint64)
}

// Host supplies memory and a processor for generated code.
type Host interface {
	// AllocCode places code in memory that is executable and no longer
	// writable.
	AllocCode(code []byte) (Region, error)
	// AllocData maps size bytes of zeroed read/write memory.
	AllocData(size int) (Region, error)
	// Resize grows a data region to size bytes, keeping its contents. The
	// address may change.
	Resize(r Region, size int) (Region, error)
	Free(r Region) error
	// Bind routes stub calls carrying the returned Stubs.Context to cb.
	// A host serves any number of bindings at once.
	Bind(cb Callbacks) (Stubs, error)
	// Unbind releases the binding for ctx.
	Unbind(ctx uint64) error
	// Enter calls entry(cursor, lo, hi) and returns its result.
	Enter(entry, cursor, lo, hi uint64) (uint64, error)
	Close() error
}

// NewHost returns the Host for a backend name.
func NewHost(backend string) (Host, error) {
	switch backend {
	case "", BackendNative:
		return newNativeHost()
	case BackendSandbox:
		return newSandboxHost()
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
}

func pageAlign(n int) int {
	const pageSize = 4096
	if n <= 0 {
		return pageSize
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}
