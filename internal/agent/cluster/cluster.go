// Package cluster picks the collection site a unit should head for: the k x k
// window with the highest halite, discounted by the round trip to reach it.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"halitebot.ai/internal/sim/field"
	"halitebot.ai/internal/sim/geom"
)

var ErrWindow = errors.New("invalid cluster window")

// DefaultDecay is the per-step travel discount.
const DefaultDecay = 0.9

// Center is the cell a window anchored at anchor is reported by.
func Center(anchor geom.Position, k int) geom.Position {
	return geom.Position{X: anchor.X + k/2, Y: anchor.Y + k/2}
}

// Evaluate scores one window: its raw sum discounted by decay^(2*d), d being
// the distance from `from` to the window center.
func Evaluate(f *field.Field, anchor geom.Position, k int, from geom.Position, decay float64) float64 {
	travel := 2 * f.Grid().Distance(from, Center(anchor, k))
	return f.WindowSum(anchor, k) * math.Pow(decay, float64(travel))
}

// Find scans every non-wrapping k x k window in row-major anchor order and
// returns the center of the best one. Ties keep the earliest window, so an
// empty board yields (k/2, k/2).
func Find(f *field.Field, k int, from geom.Position, decay float64) (geom.Position, error) {
	n := f.Size()
	if k < 1 || k > n {
		return geom.Position{}, fmt.Errorf("%w: k=%d on %dx%d board", ErrWindow, k, n, n)
	}

	best := Center(geom.Position{}, k)
	bestValue := math.Inf(-1)
	for x := 0; x+k <= n; x++ {
		for y := 0; y+k <= n; y++ {
			anchor := geom.Position{X: x, Y: y}
			v := Evaluate(f, anchor, k, from, decay)
			if v > bestValue {
				bestValue = v
				best = Center(anchor, k)
			}
		}
	}
	return best, nil
}
