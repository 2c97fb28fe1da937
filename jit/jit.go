// Package jit compiles tape machines to x86-64 one state at a time.
//
// Every state owns a slot in a dispatch table. Slots start out pointing at
// a shared compiler trampoline; the first transfer through a slot compiles
// the state and patches the slot, so later transfers jump straight into the
// compiled body. Bodies end in tail jumps, so a run never grows the native
// stack across transitions. The tape lives in host memory and is grown by a
// second trampoline when the cursor leaves it.
package jit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/colorfulnotion/tjit/log"
	"github.com/colorfulnotion/tjit/program"
)

// Engine runs one function once. It owns every region it maps and frees
// them all in Close; nothing is unmapped while code runs.
type Engine struct {
	fn      *program.Function
	cfg     Config
	host    Host
	ownHost bool

	columns int // tapes per row
	stubs   Stubs
	bound   bool
	table   *dispatchTable
	ctl     Region // tape base and size, read by the grow trampoline
	tape    Region

	entry    trampoline
	compiler trampoline
	grow     trampoline
	code     []Region // compiled states

	stats  Stats
	ran    bool
	closed bool
}

// Code is everything an engine has emitted.
type Code struct {
	Entry    []byte
	Compiler []byte
	Grow     []byte
	States   map[int][]byte
}

// New prepares fn on the backend named in cfg.
func New(fn *program.Function, cfg Config) (*Engine, error) {
	host, err := NewHost(cfg.Backend)
	if err != nil {
		return nil, err
	}
	e, err := NewWithHost(fn, host, cfg)
	if err != nil {
		host.Close()
		return nil, err
	}
	e.ownHost = true
	return e, nil
}

// NewWithHost prepares fn on host: it maps the dispatch table and builds
// the three trampolines. No state is compiled yet.
func NewWithHost(fn *program.Function, host Host, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := fn.Validate(); err != nil {
		return nil, err
	}
	m := fn.Machine
	if t := m.MaxTape(); t > math.MaxInt32 {
		return nil, fmt.Errorf("%s: %w: tape %d", fn.Name, ErrTapeRange, t)
	}
	columns := max(fn.Arity, m.MaxTape()) + 1
	for i, r := range m.Rules {
		if r.Delta < math.MinInt32 || r.Delta > math.MaxInt32 {
			return nil, fmt.Errorf("%s rule %d: %w: %d rows", fn.Name, i, ErrDeltaRange, r.Delta)
		}
		if d := int64(r.Delta) * int64(columns); d < math.MinInt32 || d > math.MaxInt32 {
			return nil, fmt.Errorf("%s rule %d: %w: %d rows of %d cells", fn.Name, i, ErrDeltaRange, r.Delta, columns)
		}
	}

	e := &Engine{fn: fn, cfg: cfg, host: host, columns: columns, stats: newStats()}
	if err := e.setup(); err != nil {
		e.Close()
		return nil, err
	}
	log.Debug(log.JitMonitoring, "engine ready", "fn", fn.Name, "states", len(e.table.slots), "columns", columns)
	return e, nil
}

func (e *Engine) setup() error {
	m := e.fn.Machine
	stubs, err := e.host.Bind(e)
	if err != nil {
		return fmt.Errorf("bind callbacks: %w", err)
	}
	e.stubs = stubs
	e.bound = true

	states := m.MaxState() + 1
	tableRegion, err := e.host.AllocData(8 * states)
	if err != nil {
		return fmt.Errorf("dispatch table: %w", err)
	}
	// Kept in e.code so Close frees it even if the table fails to initialize.
	e.code = append(e.code, tableRegion)

	if e.ctl, err = e.host.AllocData(16); err != nil {
		return fmt.Errorf("control block: %w", err)
	}
	if e.grow, err = e.install(buildGrow(stubs, e.ctl.Addr())); err != nil {
		return fmt.Errorf("grow trampoline: %w", err)
	}
	if e.compiler, err = e.install(buildCompiler(stubs)); err != nil {
		return fmt.Errorf("compiler trampoline: %w", err)
	}
	if e.table, err = newDispatchTable(tableRegion, states, e.compiler.region.Addr()); err != nil {
		return err
	}
	if e.entry, err = e.install(buildEntry(e.table.slotAddr(m.Init))); err != nil {
		return fmt.Errorf("entry trampoline: %w", err)
	}
	return nil
}

func (e *Engine) install(body []byte) (trampoline, error) {
	region, err := e.host.AllocCode(body)
	if err != nil {
		return trampoline{}, err
	}
	e.code = append(e.code, region)
	return trampoline{region: region, body: body}, nil
}

// Run executes the function on args and decodes the result from the
// column after the arguments, starting at the final cursor row.
func (e *Engine) Run(args []uint64) (int64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.ran {
		return 0, ErrAlreadyRun
	}
	e.ran = true

	if err := e.fn.CheckArgs(args); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrArity, err)
	}
	if err := e.loadTape(args); err != nil {
		return 0, err
	}

	lo := e.tape.Addr()
	hi := lo + uint64(e.tape.Size())
	cursor, err := e.host.Enter(e.entry.region.Addr(), lo+uint64(e.columns), lo, hi)
	e.stats.TapeSize = e.tape.Size()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", e.fn.Name, err)
	}
	return e.result(cursor)
}

// loadTape maps the initial tape and publishes it to the grow trampoline.
func (e *Engine) loadTape(args []uint64) error {
	rows := initialRows(args, e.cfg.MinRows)
	cells := encodeTape(e.columns, rows, args)
	tape, err := e.host.AllocData(len(cells))
	if err != nil {
		return fmt.Errorf("tape: %w", err)
	}
	e.tape = tape
	if _, err := tape.WriteAt(cells, 0); err != nil {
		return fmt.Errorf("tape: %w", err)
	}
	log.Debug(log.TapeMonitoring, "tape allocated", "columns", e.columns, "rows", rows)
	return e.publishTape()
}

func (e *Engine) publishTape() error {
	var ctl [16]byte
	binary.LittleEndian.PutUint64(ctl[0:], e.tape.Addr())
	binary.LittleEndian.PutUint64(ctl[8:], uint64(e.tape.Size()))
	_, err := e.ctl.WriteAt(ctl[:], 0)
	return err
}

func (e *Engine) readTape() ([]byte, error) {
	cells := make([]byte, e.tape.Size())
	if _, err := e.tape.ReadAt(cells, 0); err != nil {
		return nil, err
	}
	return cells, nil
}

// growTape is reached through the grow trampoline with a cursor outside
// the tape. The tape only ever grows forward, doubling until the cursor
// fits; the cursor keeps its offset from the tape start.
func (e *Engine) growTape(cursor uint64) (uint64, error) {
	base := e.tape.Addr()
	if cursor < base {
		return 0, fmt.Errorf("%w: cursor 0x%x, tape at 0x%x", ErrTapeUnderflow, cursor, base)
	}
	offset := cursor - base
	oldSize := e.tape.Size()
	if offset < uint64(oldSize) {
		return 0, fmt.Errorf("grow requested for offset %d inside a tape of %d bytes", offset, oldSize)
	}
	newSize := grownSize(oldSize, offset)
	log.Debug(log.TapeMonitoring, "growing tape", "from", oldSize, "to", newSize)

	tape, err := e.host.Resize(e.tape, newSize)
	if err != nil {
		return 0, err
	}
	e.tape = tape
	if err := fillBlank(tape, oldSize, newSize); err != nil {
		return 0, err
	}
	if err := e.publishTape(); err != nil {
		return 0, err
	}
	e.stats.Grows++
	return tape.Addr() + offset, nil
}

func (e *Engine) result(cursor uint64) (int64, error) {
	base := e.tape.Addr()
	if cursor < base || cursor >= base+uint64(e.tape.Size()) {
		return 0, fmt.Errorf("%w: cursor 0x%x, tape 0x%x+%d", ErrUnterminatedResult, cursor, base, e.tape.Size())
	}
	cells, err := e.readTape()
	if err != nil {
		return 0, err
	}
	row := int(cursor-base) / e.columns
	v, err := decodeColumn(cells, e.columns, e.fn.Arity, row)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// Stats returns a copy of the run statistics.
func (e *Engine) Stats() Stats {
	return e.stats.clone()
}

// CompiledCode returns the trampolines and every compiled state body.
func (e *Engine) CompiledCode() Code {
	c := Code{Entry: e.entry.body, Compiler: e.compiler.body, Grow: e.grow.body, States: make(map[int][]byte)}
	if e.table == nil {
		return c
	}
	for state, s := range e.table.slots {
		if s.kind == slotCompiled {
			c.States[state] = s.body
		}
	}
	return c
}

// Tape returns a copy of the current tape cells and the number of columns.
func (e *Engine) Tape() ([]byte, int, error) {
	if e.tape == nil {
		return nil, e.columns, nil
	}
	cells, err := e.readTape()
	return cells, e.columns, err
}

// Close unmaps every region the engine created and, if New created the
// host, closes it.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	for _, r := range e.code {
		errs = append(errs, e.host.Free(r))
	}
	e.code = nil
	for _, r := range []Region{e.ctl, e.tape} {
		if r != nil {
			errs = append(errs, e.host.Free(r))
		}
	}
	if e.bound {
		errs = append(errs, e.host.Unbind(e.stubs.Context))
		e.bound = false
	}
	if e.ownHost {
		errs = append(errs, e.host.Close())
	}
	return errors.Join(errs...)
}

// Run compiles and runs fn once on a fresh engine.
func Run(fn *program.Function, args []uint64, cfg Config) (int64, Stats, error) {
	e, err := New(fn, cfg)
	if err != nil {
		return 0, Stats{}, err
	}
	defer e.Close()
	v, err := e.Run(args)
	return v, e.Stats(), err
}
