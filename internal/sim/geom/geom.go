// Package geom is coordinate arithmetic on the wraparound board.
//
// X is the row axis and Y the column axis, matching the row-major layout of the
// engine's flat halite array: index = X*Size + Y. NORTH and SOUTH move along X,
// EAST and WEST along Y.
package geom

import (
	"errors"
	"fmt"

	"halitebot.ai/internal/sim/mathx"
)

var ErrOutOfRange = errors.New("position out of range")

type Position struct {
	X int
	Y int
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

type Move string

const (
	North   Move = "NORTH"
	South   Move = "SOUTH"
	East    Move = "EAST"
	West    Move = "WEST"
	Collect Move = "COLLECT"
)

// Moves is the fixed enumeration order of directional moves. Callers rely on
// it for deterministic tie-breaking.
var Moves = []Move{North, South, East, West}

// Actions is Moves plus Collect, in the order the planner enumerates them.
var Actions = []Move{North, South, East, West, Collect}

func (m Move) Valid() bool {
	switch m {
	case North, South, East, West, Collect:
		return true
	}
	return false
}

// IsMove reports whether m displaces the unit.
func (m Move) IsMove() bool { return m != Collect && m.Valid() }

// Delta is the (dx, dy) displacement of m. It panics on values outside the
// Move enumeration.
func (m Move) Delta() (int, int) {
	switch m {
	case North:
		return -1, 0
	case South:
		return 1, 0
	case East:
		return 0, 1
	case West:
		return 0, -1
	case Collect:
		return 0, 0
	}
	panic(fmt.Sprintf("geom: invalid move %q", string(m)))
}

func (m Move) Inverse() Move {
	switch m {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Collect:
		return Collect
	}
	panic(fmt.Sprintf("geom: invalid move %q", string(m)))
}

// Grid is a Size x Size torus.
type Grid struct {
	Size int
}

func (g Grid) Normalize(p Position) Position {
	return Position{X: mathx.Mod(p.X, g.Size), Y: mathx.Mod(p.Y, g.Size)}
}

func (g Grid) Contains(p Position) bool {
	return p.X >= 0 && p.X < g.Size && p.Y >= 0 && p.Y < g.Size
}

func (g Grid) Adjacent(p Position, m Move) Position {
	dx, dy := m.Delta()
	return g.Normalize(Position{X: p.X + dx, Y: p.Y + dy})
}

// AllAdjacent returns the neighbours of p in N, S, E, W order, followed by p
// itself when withCollect is set.
func (g Grid) AllAdjacent(p Position, withCollect bool) []Position {
	moves := Moves
	if withCollect {
		moves = Actions
	}
	out := make([]Position, 0, len(moves))
	for _, m := range moves {
		out = append(out, g.Adjacent(p, m))
	}
	return out
}

// Distance is the Manhattan distance on the torus.
func (g Grid) Distance(a, b Position) int {
	return mathx.TorusDelta(a.X, b.X, g.Size) + mathx.TorusDelta(a.Y, b.Y, g.Size)
}

// DirectMove is one greedy step from `from` towards `to`. The vertical axis is
// resolved before the horizontal one; an exact half-board tie goes SOUTH or EAST.
// Collect is returned when from == to.
func (g Grid) DirectMove(from, to Position) Move {
	if d := mathx.Mod(to.X-from.X, g.Size); d != 0 {
		if 2*d <= g.Size {
			return South
		}
		return North
	}
	if d := mathx.Mod(to.Y-from.Y, g.Size); d != 0 {
		if 2*d <= g.Size {
			return East
		}
		return West
	}
	return Collect
}

// Navigate is the full path DirectMove walks from `from` to `to`: every
// vertical step first, then every horizontal step. Its length equals
// Distance(from, to).
func (g Grid) Navigate(from, to Position) []Move {
	from, to = g.Normalize(from), g.Normalize(to)
	path := make([]Move, 0, g.Distance(from, to))
	for from != to {
		m := g.DirectMove(from, to)
		path = append(path, m)
		from = g.Adjacent(from, m)
	}
	return path
}

// Walk applies moves from start and returns the final position.
func (g Grid) Walk(start Position, moves []Move) Position {
	for _, m := range moves {
		start = g.Adjacent(start, m)
	}
	return start
}

// FromIndex converts a flat row-major board index into a Position.
func (g Grid) FromIndex(i int) (Position, error) {
	if g.Size <= 0 || i < 0 || i >= g.Size*g.Size {
		return Position{}, fmt.Errorf("%w: index %d on %dx%d board", ErrOutOfRange, i, g.Size, g.Size)
	}
	return Position{X: i / g.Size, Y: i % g.Size}, nil
}

func (g Grid) Index(p Position) int {
	p = g.Normalize(p)
	return p.X*g.Size + p.Y
}
