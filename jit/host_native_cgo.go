//go:build linux && amd64 && cgo

package jit

/*
#include <stdint.h>

extern unsigned long long tjitCompileState(unsigned long long slot, unsigned long long ctx);
extern unsigned long long tjitGrowTape(unsigned long long cursor, unsigned long long ctx);
extern void tjitTrace(unsigned long long ctx, unsigned long long state, unsigned long long cursor);

static uint64_t tjit_compile_stub(void) { return (uint64_t)(uintptr_t)&tjitCompileState; }
static uint64_t tjit_grow_stub(void)    { return (uint64_t)(uintptr_t)&tjitGrowTape; }
static uint64_t tjit_trace_stub(void)   { return (uint64_t)(uintptr_t)&tjitTrace; }

typedef uint64_t (*tjit_entry_fn)(uint64_t cursor, uint64_t lo, uint64_t hi);

static uint64_t tjit_enter(uint64_t entry, uint64_t cursor, uint64_t lo, uint64_t hi) {
	return ((tjit_entry_fn)(uintptr_t)entry)(cursor, lo, hi);
}
*/
import "C"

func nativeCompileStub() uint64 { return uint64(C.tjit_compile_stub()) }
func nativeGrowStub() uint64    { return uint64(C.tjit_grow_stub()) }
func nativeTraceStub() uint64   { return uint64(C.tjit_trace_stub()) }

func nativeEnter(entry, cursor, lo, hi uint64) uint64 {
	return uint64(C.tjit_enter(C.uint64_t(entry), C.uint64_t(cursor), C.uint64_t(lo), C.uint64_t(hi)))
}
