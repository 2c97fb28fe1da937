package program

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xlab/treeprint"
)

// ToTree renders the function as a tree: one branch per state, one node per
// rule in the order the JIT tries them.
func (f *Function) ToTree() treeprint.Tree {
	tree := treeprint.New()
	if f.Machine == nil {
		tree.SetValue(fmt.Sprintf("%s/%d (no machine)", f.Name, f.Arity))
		return tree
	}
	m := f.Machine
	tree.SetValue(fmt.Sprintf("%s/%d init=%d halt=%d", f.Name, f.Arity, m.Init, m.Halt))

	states := make(map[int]struct{})
	states[m.Init] = struct{}{}
	states[m.Halt] = struct{}{}
	for _, r := range m.Rules {
		states[r.From] = struct{}{}
	}
	ordered := make([]int, 0, len(states))
	for s := range states {
		ordered = append(ordered, s)
	}
	sort.Ints(ordered)

	for _, s := range ordered {
		label := fmt.Sprintf("state %d", s)
		switch {
		case s == m.Halt:
			label += " (halt)"
		case s == m.Init:
			label += " (init)"
		}
		branch := tree.AddBranch(label)
		if s == m.Halt {
			continue
		}
		for _, r := range m.RulesFrom(s) {
			branch.AddNode(r.String())
		}
	}
	return tree
}

func (r *Rule) String() string {
	return fmt.Sprintf("if %s then %s move %+d -> %d",
		patternList(r.Condition), patternList(r.Action), r.Delta, r.To)
}

func patternList(pats []Pattern) string {
	if len(pats) == 0 {
		return "()"
	}
	parts := make([]string, len(pats))
	for i, p := range pats {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
