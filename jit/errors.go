package jit

import "errors"

var (
	ErrArity              = errors.New("argument count does not match function arity")
	ErrDeltaRange         = errors.New("rule delta does not fit a 32-bit displacement")
	ErrTapeRange          = errors.New("tape index does not fit a 32-bit displacement")
	ErrTapeUnderflow      = errors.New("cursor moved below the start of the tape")
	ErrRecompile          = errors.New("state is already compiled")
	ErrInvalidSlot        = errors.New("address is not a dispatch table slot")
	ErrUnmatchedState     = errors.New("no rule matches in state")
	ErrBackendUnavailable = errors.New("execution backend not available in this build")
	ErrUnknownBackend     = errors.New("unknown execution backend")
	ErrUnterminatedResult = errors.New("result cursor lies outside the tape")
	ErrResultOverflow     = errors.New("result does not fit in 63 bits")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrAlreadyRun         = errors.New("engine has already run")
	ErrClosed             = errors.New("engine is closed")
	ErrNotBound           = errors.New("no callbacks bound to context")
)
