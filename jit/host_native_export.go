//go:build linux && amd64 && cgo

package jit

/*
#include <stdint.h>
*/
import "C"

import "github.com/colorfulnotion/tjit/log"

// The functions below are called from generated code. Errors cannot be
// returned through it, so they end the process.

//export tjitCompileState
func tjitCompileState(slot, ctx uint64) uint64 {
	addr, err := callbacksFor(ctx).compileState(slot)
	if err != nil {
		log.Crit(log.JitMonitoring, "state compilation failed", "err", err)
	}
	return addr
}

//export tjitGrowTape
func tjitGrowTape(cursor, ctx uint64) uint64 {
	next, err := callbacksFor(ctx).growTape(cursor)
	if err != nil {
		log.Crit(log.TapeMonitoring, "tape growth failed", "err", err)
	}
	return next
}

//export tjitTrace
func tjitTrace(ctx, state, cursor uint64) {
	callbacksFor(ctx).trace(int(state), cursor)
}
