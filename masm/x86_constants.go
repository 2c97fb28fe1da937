// Package masm is the minimal x86-64 assembler used by the tape JIT.
package masm

// ================================================================================================
// X86 Instruction Constants
// ================================================================================================

// REX Prefix Constants
const (
	X86_REX_BASE = 0x40 // REX prefix base
	X86_REX_W    = 0x08 // REX.W - 64-bit operand size
	X86_REX_R    = 0x04 // REX.R - Extension of ModRM reg field
	X86_REX_X    = 0x02 // REX.X - Extension of SIB index field
	X86_REX_B    = 0x01 // REX.B - Extension of ModRM r/m, SIB base, or opcode reg field
)

// ModRM Mode Constants
const (
	X86_MOD_INDIRECT        = 0x00 // [reg] or [disp32]
	X86_MOD_INDIRECT_DISP8  = 0x01 // [reg + disp8]
	X86_MOD_INDIRECT_DISP32 = 0x02 // [reg + disp32]
	X86_MOD_REGISTER        = 0x03 // reg
)

// SIB scale field
const (
	X86_SS_MULT1 = 0x00
	X86_SS_MULT2 = 0x01
	X86_SS_MULT4 = 0x02
	X86_SS_MULT8 = 0x03
)

// r/m value 100 selects a SIB byte; SIB index 100 means "no index".
const (
	X86_RM_SIB     = 0x04
	X86_SIB_NO_IDX = 0x04
)

// Primary Opcodes
const (
	X86_OP_ADD_R_RM        = 0x03 // ADD r, r/m
	X86_OP_CMP_RM_R        = 0x39 // CMP r/m, r
	X86_OP_PUSH_R          = 0x50 // PUSH r64 (+ reg)
	X86_OP_POP_R           = 0x58 // POP r64 (+ reg)
	X86_OP_GROUP1_RM8_IMM8 = 0x80 // Group 1 operations on r/m8 with imm8
	X86_OP_GROUP1_RM_IMM32 = 0x81 // Group 1 operations with imm32
	X86_OP_MOV_RM_R        = 0x89 // MOV r/m, r
	X86_OP_MOV_R_RM        = 0x8B // MOV r, r/m
	X86_OP_MOV_R_IMM       = 0xB8 // MOV r, imm64 (+ reg)
	X86_OP_RET             = 0xC3 // RET
	X86_OP_MOV_RM_IMM8     = 0xC6 // MOV r/m8, imm8
	X86_OP_INT3            = 0xCC // INT3
	X86_OP_JMP_REL32       = 0xE9 // JMP rel32
	X86_OP_GROUP5_RM       = 0xFF // Group 5 operations (INC, DEC, CALL, JMP, PUSH)
	X86_OP_TWO_BYTE        = 0x0F // two-byte opcode escape
)

// Two-byte Opcodes (0x0F prefix)
const (
	X86_OP2_JCC_REL32   = 0x80 // Jcc rel32 (+ condition)
	X86_OP2_MOVZX_R_RM8 = 0xB6 // MOVZX r, r/m8
)

// ModRM.reg extensions
const (
	X86_EXT_ADD  = 0 // group 1 ADD
	X86_EXT_CMP  = 7 // group 1 CMP
	X86_EXT_MOV  = 0 // C6 /0
	X86_EXT_CALL = 2 // group 5 CALL r/m
	X86_EXT_JMP  = 4 // group 5 JMP r/m
)
