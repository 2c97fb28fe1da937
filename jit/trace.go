package jit

import (
	"fmt"
	"maps"
	"slices"

	"github.com/colorfulnotion/tjit/log"
)

// Stats describes one run.
type Stats struct {
	Cycles   uint64         // state entries
	Compiles map[int]int    // state -> times compiled
	Visits   map[int]uint64 // state -> times entered
	Grows    int
	TapeSize int
	Sequence []int // visited states in order, with Config.RecordVisits
}

func newStats() Stats {
	return Stats{Compiles: make(map[int]int), Visits: make(map[int]uint64)}
}

func (s Stats) clone() Stats {
	s.Compiles = maps.Clone(s.Compiles)
	s.Visits = maps.Clone(s.Visits)
	s.Sequence = slices.Clone(s.Sequence)
	return s
}

// trace runs at the top of every state body. It never touches the tape or
// the dispatch table.
func (e *Engine) trace(state int, cursor uint64) {
	e.stats.Cycles++
	e.stats.Visits[state]++
	if e.cfg.RecordVisits {
		e.stats.Sequence = append(e.stats.Sequence, state)
	}
	if !e.cfg.Trace || e.tape == nil {
		return
	}

	row := int64(cursor-e.tape.Addr()) / int64(e.columns)
	final := state == e.fn.Machine.Halt
	if row != 0 && !final {
		return
	}
	cells, err := e.readTape()
	if err != nil {
		log.Warn(log.TapeMonitoring, "snapshot failed", "err", err)
		return
	}
	w := e.cfg.traceOutput()
	fmt.Fprintf(w, "--------------------------------------------- Cycle %6d\n", e.stats.Cycles)
	if final {
		fmt.Fprintf(w, "State %d (final)\n", state)
	} else {
		fmt.Fprintf(w, "State %d\n", state)
	}
	renderTape(w, cells, e.columns)
}
