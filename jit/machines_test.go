package jit

import (
	"testing"

	"github.com/colorfulnotion/tjit/program"
	"github.com/stretchr/testify/require"
)

const identitySrc = `
; copy tape 0 onto tape 1, then walk back to row 0
((id 1 (0 1 (
	(0 0 ((1 0)) ((1 1)) 1)
	(0 0 ((0 0)) ((0 1)) 1)
	(0 2 ((2 0)) ((2 1)) -1)
	(2 1 ((2 0)) () 1)
	(2 2 () () -1)))))
`

func mustParse(t testing.TB, src, name string) *program.Function {
	t.Helper()
	funcs, err := program.Parse(src)
	require.NoError(t, err)
	f, err := program.Lookup(funcs, name)
	require.NoError(t, err)
	return f
}

func identityFunc(t testing.TB) *program.Function {
	return mustParse(t, identitySrc, "id")
}

// oneFunc halts after a single rule that copies a 1 into the result column.
func oneFunc() *program.Function {
	return &program.Function{Name: "one", Arity: 1, Machine: &program.Machine{Init: 0, Halt: 1, Rules: []program.Rule{
		{From: 0, To: 1, Condition: []program.Pattern{{Symbol: 1, Tape: 0}}, Action: []program.Pattern{{Symbol: 1, Tape: 1}}},
	}}}
}

// trapFunc has no rule for a 1 under the cursor.
func trapFunc() *program.Function {
	return &program.Function{Name: "trap", Arity: 1, Machine: &program.Machine{Init: 0, Halt: 1, Rules: []program.Rule{
		{From: 0, To: 1, Condition: []program.Pattern{{Symbol: 0, Tape: 0}}},
	}}}
}

// underflowFunc walks left forever.
func underflowFunc() *program.Function {
	return &program.Function{Name: "left", Arity: 1, Machine: &program.Machine{Init: 0, Halt: 1, Rules: []program.Rule{
		{From: 0, To: 0, Delta: -1},
	}}}
}

// specificFunc has two matching rules for args (1, 1); the less specific
// one is listed first.
func specificFunc() *program.Function {
	return &program.Function{Name: "pick", Arity: 2, Machine: &program.Machine{Init: 0, Halt: 1, Rules: []program.Rule{
		{From: 0, To: 1,
			Condition: []program.Pattern{{Symbol: 1, Tape: 0}},
			Action:    []program.Pattern{{Symbol: 0, Tape: 2}}},
		{From: 0, To: 1,
			Condition: []program.Pattern{{Symbol: 1, Tape: 0}, {Symbol: 1, Tape: 1}},
			Action:    []program.Pattern{{Symbol: 1, Tape: 2}}},
	}}}
}

// onesFunc takes no arguments, writes k ones walking right, closes them
// with a sentinel and walks back to row 1. Its result is 2^k - 1 and its
// tape starts two rows deep, so it grows several times.
func onesFunc(k int) *program.Function {
	m := &program.Machine{Init: 0, Halt: k + 2}
	for s := 0; s < k; s++ {
		m.Rules = append(m.Rules, program.Rule{From: s, To: s + 1,
			Action: []program.Pattern{{Symbol: program.SymbolOne, Tape: 0}}, Delta: 1})
	}
	m.Rules = append(m.Rules,
		program.Rule{From: k, To: k + 1, Action: []program.Pattern{{Symbol: program.SymbolSentinel, Tape: 0}}, Delta: -1},
		program.Rule{From: k + 1, To: k + 1, Condition: []program.Pattern{{Symbol: program.SymbolOne, Tape: 0}}, Delta: -1},
		program.Rule{From: k + 1, To: k + 2, Delta: 1},
	)
	return &program.Function{Name: "ones", Arity: 0, Machine: m}
}

type scenario struct {
	name string
	fn   *program.Function
	args []uint64
	want int64
}

func scenarios(t testing.TB) []scenario {
	id := identityFunc(t)
	return []scenario{
		{"single rule", oneFunc(), []uint64{1}, 1},
		{"identity 5", id, []uint64{5}, 5},
		{"identity 0", id, []uint64{0}, 0},
		{"identity 1023", id, []uint64{1023}, 1023},
		{"identity 2^40+3", id, []uint64{1<<40 + 3}, 1<<40 + 3},
		{"specificity both", specificFunc(), []uint64{1, 1}, 1},
		{"specificity one", specificFunc(), []uint64{1, 0}, 0},
		{"growth", onesFunc(12), nil, 4095},
	}
}
