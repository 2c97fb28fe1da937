package jit

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"

	"github.com/colorfulnotion/tjit/program"
)

// The tape is row-major: a row holds one cell per tape, so cell (row, tape)
// lives at row*columns + tape and a cursor always points at a row start.
// Argument i occupies column i as a sentinel on row 0, its bits
// least-significant first, and a closing sentinel.

// initialRows is the depth needed for the widest argument plus both
// sentinels, raised to minRows.
func initialRows(args []uint64, minRows int) int {
	width := 0
	for _, v := range args {
		if n := bits.Len64(v); n > width {
			width = n
		}
	}
	rows := width + 2
	if rows < minRows {
		rows = minRows
	}
	return rows
}

// encodeTape builds the initial tape image for args.
func encodeTape(columns, rows int, args []uint64) []byte {
	cells := bytes.Repeat([]byte{program.SymbolBlank}, columns*rows)
	for i, v := range args {
		n := bits.Len64(v)
		cells[i] = program.SymbolSentinel
		for b := 0; b < n; b++ {
			cells[(1+b)*columns+i] = byte(v >> b & 1)
		}
		cells[(1+n)*columns+i] = program.SymbolSentinel
	}
	return cells
}

// decodeColumn reads the binary number in column starting at row. It stops
// at a sentinel, an uninitialized cell or the end of the tape.
func decodeColumn(cells []byte, columns, column, row int) (uint64, error) {
	var v uint64
	for bit := 0; ; bit++ {
		off := (row+bit)*columns + column
		if off >= len(cells) {
			return v, nil
		}
		switch cells[off] {
		case program.SymbolZero:
		case program.SymbolOne:
			if bit >= 63 {
				return 0, fmt.Errorf("%w: bit %d set", ErrResultOverflow, bit)
			}
			v |= 1 << bit
		default:
			return v, nil
		}
	}
}

func cellRune(c byte) byte {
	switch c {
	case program.SymbolZero:
		return '0'
	case program.SymbolOne:
		return '1'
	case program.SymbolSentinel:
		return '#'
	}
	return ' '
}

// renderTape prints one line per tape with every cell of the column.
func renderTape(w io.Writer, cells []byte, columns int) {
	rows := len(cells) / columns
	line := make([]byte, 0, 2*rows)
	for tape := 0; tape < columns; tape++ {
		line = line[:0]
		for row := 0; row < rows; row++ {
			line = append(line, cellRune(cells[row*columns+tape]), ' ')
		}
		fmt.Fprintf(w, "Var %3d: %s\n", tape, line)
	}
}

// fillBlank marks [from, to) of r as never written.
func fillBlank(r Region, from, to int) error {
	if to <= from {
		return nil
	}
	_, err := r.WriteAt(bytes.Repeat([]byte{program.SymbolBlank}, to-from), int64(from))
	return err
}

// grownSize doubles size until offset falls inside it.
func grownSize(size int, offset uint64) int {
	for uint64(size) <= offset {
		size *= 2
	}
	return size
}
