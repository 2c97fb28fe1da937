//go:build linux && amd64 && cgo

package jit

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"unsafe"

	"github.com/colorfulnotion/tjit/log"
	"golang.org/x/sys/unix"
)

// nativeRegion is an anonymous private mapping. mem covers the whole
// mapping; size is what the caller asked for.
type nativeRegion struct {
	mem  []byte
	size int
}

func (r *nativeRegion) Addr() uint64 { return uint64(uintptr(unsafe.Pointer(&r.mem[0]))) }
func (r *nativeRegion) Size() int    { return r.size }

func (r *nativeRegion) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(r.size) {
		return 0, fmt.Errorf("read of %d bytes at %d outside region of %d", len(p), off, r.size)
	}
	return copy(p, r.mem[off:]), nil
}

func (r *nativeRegion) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(r.size) {
		return 0, fmt.Errorf("write of %d bytes at %d outside region of %d", len(p), off, r.size)
	}
	return copy(r.mem[off:], p), nil
}

// nativeHost runs generated code directly on this CPU. Code pages are
// written first and then flipped to read+execute.
type nativeHost struct {
	handles map[cgo.Handle]struct{}
}

func newNativeHost() (Host, error) {
	return &nativeHost{handles: make(map[cgo.Handle]struct{})}, nil
}

func mapAnon(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, pageAlign(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrOutOfMemory, size, err)
	}
	return mem, nil
}

func (h *nativeHost) AllocCode(code []byte) (Region, error) {
	mem, err := mapAnon(len(code))
	if err != nil {
		return nil, err
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("mprotect code: %w", err)
	}
	r := &nativeRegion{mem: mem, size: len(code)}
	log.Trace(log.HostMonitoring, "mapped code", "addr", fmt.Sprintf("0x%x", r.Addr()), "len", len(code))
	return r, nil
}

func (h *nativeHost) AllocData(size int) (Region, error) {
	mem, err := mapAnon(size)
	if err != nil {
		return nil, err
	}
	return &nativeRegion{mem: mem, size: size}, nil
}

func (h *nativeHost) Resize(r Region, size int) (Region, error) {
	nr := r.(*nativeRegion)
	if size <= len(nr.mem) {
		nr.size = size
		return nr, nil
	}
	mem, err := unix.Mremap(nr.mem, pageAlign(size), unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, fmt.Errorf("%w: mremap to %d bytes: %v", ErrOutOfMemory, size, err)
	}
	nr.mem = mem
	nr.size = size
	return nr, nil
}

func (h *nativeHost) Free(r Region) error {
	nr := r.(*nativeRegion)
	if nr.mem == nil {
		return nil
	}
	err := unix.Munmap(nr.mem)
	nr.mem = nil
	return err
}

// Bind gives every engine its own handle, so engines sharing a host never
// see each other's callbacks.
func (h *nativeHost) Bind(cb Callbacks) (Stubs, error) {
	handle := cgo.NewHandle(cb)
	h.handles[handle] = struct{}{}
	return Stubs{
		Compile: nativeCompileStub(),
		Grow:    nativeGrowStub(),
		Trace:   nativeTraceStub(),
		Context: uint64(handle),
	}, nil
}

func (h *nativeHost) Unbind(ctx uint64) error {
	handle := cgo.Handle(ctx)
	if _, ok := h.handles[handle]; !ok {
		return fmt.Errorf("%w 0x%x", ErrNotBound, ctx)
	}
	delete(h.handles, handle)
	handle.Delete()
	return nil
}

// Enter runs on a locked thread; an unmatched state traps and takes the
// process down.
func (h *nativeHost) Enter(entry, cursor, lo, hi uint64) (uint64, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return nativeEnter(entry, cursor, lo, hi), nil
}

func (h *nativeHost) Close() error {
	for handle := range h.handles {
		handle.Delete()
	}
	clear(h.handles)
	return nil
}

func callbacksFor(ctx uint64) Callbacks {
	return cgo.Handle(ctx).Value().(Callbacks)
}
