package field

import (
	"errors"
	"fmt"

	"halitebot.ai/internal/sim/geom"
)

var ErrShape = errors.New("malformed halite field")

// Field is the per-cell halite of one turn, row-major (index = X*Size + Y).
type Field struct {
	size  int
	cells []float64
}

// New copies cells into a Size x Size field.
func New(size int, cells []float64) (*Field, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrShape, size)
	}
	if len(cells) != size*size {
		return nil, fmt.Errorf("%w: %d cells for %dx%d board", ErrShape, len(cells), size, size)
	}
	out := make([]float64, len(cells))
	for i, v := range cells {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative amount %v at index %d", ErrShape, v, i)
		}
		out[i] = v
	}
	return &Field{size: size, cells: out}, nil
}

func (f *Field) Size() int       { return f.size }
func (f *Field) Grid() geom.Grid { return geom.Grid{Size: f.size} }

func (f *Field) index(p geom.Position) int {
	return f.Grid().Index(p)
}

func (f *Field) AmountAt(p geom.Position) float64 {
	return f.cells[f.index(p)]
}

// Harvest removes fraction of the amount at p and returns what was removed.
// Only planner simulations call it, always on a Clone.
func (f *Field) Harvest(p geom.Position, fraction float64) float64 {
	i := f.index(p)
	got := fraction * f.cells[i]
	f.cells[i] -= got
	if f.cells[i] < 0 {
		f.cells[i] = 0
	}
	return got
}

func (f *Field) Clone() *Field {
	cells := make([]float64, len(f.cells))
	copy(cells, f.cells)
	return &Field{size: f.size, cells: cells}
}

// WindowSum sums the k x k window whose top-left corner is anchor. The window
// does not wrap; callers keep anchor+k within the board.
func (f *Field) WindowSum(anchor geom.Position, k int) float64 {
	var sum float64
	for x := anchor.X; x < anchor.X+k; x++ {
		row := x * f.size
		for y := anchor.Y; y < anchor.Y+k; y++ {
			sum += f.cells[row+y]
		}
	}
	return sum
}
