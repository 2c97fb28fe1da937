// Package program holds the immutable description of tape machines: the
// functions a source file defines, their machines, rules and patterns.
package program

import (
	"errors"
	"fmt"
	"slices"
)

// Tape cell values.
const (
	SymbolZero     byte = 0
	SymbolOne      byte = 1
	SymbolSentinel byte = 2
	SymbolBlank    byte = 0xFF // never written
)

// ValidSymbol reports whether v is a cell value a pattern may name. A
// condition on SymbolBlank matches cells the tape has not reached yet.
func ValidSymbol(v int) bool {
	switch v {
	case int(SymbolZero), int(SymbolOne), int(SymbolSentinel), int(SymbolBlank):
		return true
	}
	return false
}

var (
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidTape    = errors.New("invalid tape")
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrInvalidArity   = errors.New("invalid arity")
	ErrDuplicateName  = errors.New("duplicate function")
	ErrUnknownFunc    = errors.New("no such function")
	ErrArityMismatch  = errors.New("argument count mismatch")
	ErrMissingMachine = errors.New("function has no machine")
)

// Pattern is one cell of a rule: a symbol at a tape index.
type Pattern struct {
	Symbol byte
	Tape   int
}

func (p Pattern) String() string {
	return fmt.Sprintf("(%d %d)", p.Symbol, p.Tape)
}

// Rule fires in state From when every Condition pattern matches the row
// under the cursor. It then writes Action, moves the cursor Delta rows and
// continues in state To.
type Rule struct {
	From      int
	To        int
	Condition []Pattern
	Action    []Pattern
	Delta     int
}

// Specificity is the number of condition patterns.
func (r *Rule) Specificity() int { return len(r.Condition) }

// Machine is a set of rules with a start and a halting state.
type Machine struct {
	Init  int
	Halt  int
	Rules []Rule
}

// RulesFrom returns the rules leaving state, most specific first. Rules of
// equal specificity keep their order in the machine.
func (m *Machine) RulesFrom(state int) []*Rule {
	var out []*Rule
	for i := range m.Rules {
		if m.Rules[i].From == state {
			out = append(out, &m.Rules[i])
		}
	}
	slices.SortStableFunc(out, func(a, b *Rule) int {
		return b.Specificity() - a.Specificity()
	})
	return out
}

// MaxState is the highest state id the machine mentions anywhere.
func (m *Machine) MaxState() int {
	max := m.Init
	if m.Halt > max {
		max = m.Halt
	}
	for _, r := range m.Rules {
		if r.From > max {
			max = r.From
		}
		if r.To > max {
			max = r.To
		}
	}
	return max
}

// MaxTape is the highest tape index referenced by a pattern, or -1.
func (m *Machine) MaxTape() int {
	max := -1
	for _, r := range m.Rules {
		for _, p := range r.Condition {
			if p.Tape > max {
				max = p.Tape
			}
		}
		for _, p := range r.Action {
			if p.Tape > max {
				max = p.Tape
			}
		}
	}
	return max
}

// Function is a named machine taking Arity binary arguments.
type Function struct {
	Name    string
	Arity   int
	Machine *Machine
}

// Validate checks the invariants the JIT relies on.
func (f *Function) Validate() error {
	if f.Arity < 0 {
		return fmt.Errorf("%s: %w %d", f.Name, ErrInvalidArity, f.Arity)
	}
	m := f.Machine
	if m == nil {
		return fmt.Errorf("%s: %w", f.Name, ErrMissingMachine)
	}
	if m.Init < 0 || m.Halt < 0 {
		return fmt.Errorf("%s: %w: init %d halt %d", f.Name, ErrInvalidState, m.Init, m.Halt)
	}
	for i, r := range m.Rules {
		if r.From < 0 || r.To < 0 {
			return fmt.Errorf("%s rule %d: %w: %d -> %d", f.Name, i, ErrInvalidState, r.From, r.To)
		}
		for _, pats := range [][]Pattern{r.Condition, r.Action} {
			for _, p := range pats {
				if p.Tape < 0 {
					return fmt.Errorf("%s rule %d: %w %d", f.Name, i, ErrInvalidTape, p.Tape)
				}
				if !ValidSymbol(int(p.Symbol)) {
					return fmt.Errorf("%s rule %d: %w %d", f.Name, i, ErrInvalidSymbol, p.Symbol)
				}
			}
		}
	}
	return nil
}

// ArityError is a call with the wrong number of arguments. It matches
// ErrArityMismatch.
type ArityError struct {
	Want, Got int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("Expected %d arguments, got %d", e.Want, e.Got)
}

func (e *ArityError) Is(target error) bool { return target == ErrArityMismatch }

// CheckArgs verifies the caller supplied exactly Arity arguments.
func (f *Function) CheckArgs(args []uint64) error {
	if len(args) != f.Arity {
		return &ArityError{Want: f.Arity, Got: len(args)}
	}
	return nil
}

// Lookup finds name among funcs.
func Lookup(funcs map[string]*Function, name string) (*Function, error) {
	f, ok := funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownFunc, name)
	}
	return f, nil
}
