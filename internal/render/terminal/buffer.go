package terminal

import (
	"github.com/gdamore/tcell/v2"
	"golang.org/x/text/width"
)

// Cell is one character cell. A zero Rune is empty.
type Cell struct {
	Rune rune
	FG   tcell.Color
	BG   tcell.Color
}

func (c Cell) Empty() bool { return c.Rune == 0 }

// Style returns the tcell style for the cell.
func (c Cell) Style() tcell.Style {
	return tcell.StyleDefault.Foreground(c.FG).Background(c.BG)
}

var emptyCell = Cell{FG: tcell.ColorDefault, BG: tcell.ColorDefault}

// Buffer is a fixed-size grid of cells used as an effect pipeline buffer.
type Buffer struct {
	cells  []Cell
	width  int
	height int
}

func NewBuffer(w, h int) *Buffer {
	b := &Buffer{}
	b.SetSize(w, h)
	return b
}

// SetSize adjusts the dimensions, reallocating only if capacity is
// insufficient, and clears the buffer.
func (b *Buffer) SetSize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	size := w * h
	if cap(b.cells) < size {
		b.cells = make([]Cell, size)
	} else {
		b.cells = b.cells[:size]
	}
	b.width, b.height = w, h
	b.Clear()
}

func (b *Buffer) Size() (int, int) { return b.width, b.height }

// Clear resets all cells to empty using exponential copy.
func (b *Buffer) Clear() {
	if len(b.cells) == 0 {
		return
	}
	b.cells[0] = emptyCell
	for filled := 1; filled < len(b.cells); filled *= 2 {
		copy(b.cells[filled:], b.cells[:filled])
	}
}

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// At returns the cell at x, y, or an empty cell out of bounds.
func (b *Buffer) At(x, y int) Cell {
	if !b.inBounds(x, y) {
		return emptyCell
	}
	return b.cells[y*b.width+x]
}

// Set writes c at x, y. Out of bounds writes are dropped.
func (b *Buffer) Set(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	b.cells[y*b.width+x] = c
}

// CopyFrom copies o into b. Sizes must match; otherwise the overlap is
// copied row by row.
func (b *Buffer) CopyFrom(o *Buffer) {
	if b.width == o.width && b.height == o.height {
		copy(b.cells, o.cells)
		return
	}
	b.Clear()
	for y := 0; y < b.height && y < o.height; y++ {
		for x := 0; x < b.width && x < o.width; x++ {
			b.cells[y*b.width+x] = o.cells[y*o.width+x]
		}
	}
}

// DrawText writes s starting at x, y and returns the column after the
// last cell written. Wide runes take two columns.
func (b *Buffer) DrawText(x, y int, s string, fg, bg tcell.Color) int {
	for _, r := range s {
		b.Set(x, y, Cell{Rune: r, FG: fg, BG: bg})
		x += runeWidth(r)
	}
	return x
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// TextWidth returns the number of columns s occupies.
func TextWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}
