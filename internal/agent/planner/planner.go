// Package planner searches short action sequences for a collecting unit.
//
// Every candidate of exactly Depth actions is simulated against a private copy
// of the turn's field and scored by the cargo it would bring home, discounted
// for the trip back and for the plan's length. The empty plan (go home now) is
// the baseline every candidate has to beat.
package planner

import (
	"math"

	"halitebot.ai/internal/sim/field"
	"halitebot.ai/internal/sim/geom"
)

const (
	DefaultDepth         = 2
	DefaultCargoDecay    = 0.9
	DefaultCollectRate   = 0.25
	DefaultCollectGrowth = 1.02
	DefaultReturnDecay   = 0.9
	DefaultLengthPenalty = 1.05
)

type Planner struct {
	Depth int

	// CargoDecay multiplies cargo on every displacing move.
	CargoDecay float64
	// A COLLECT at plan step i takes CollectRate * CollectGrowth^i of the cell.
	// The growth factor makes later collection worth more than earlier
	// collection, which is the opposite of what decay would suggest.
	// TODO: confirm against recorded games whether CollectGrowth should be < 1.
	CollectRate   float64
	CollectGrowth float64
	// ReturnDecay is applied once per step of the remaining trip to the base.
	ReturnDecay float64
	// LengthPenalty divides the value once per planned action.
	LengthPenalty float64
}

func Default() Planner {
	return Planner{
		Depth:         DefaultDepth,
		CargoDecay:    DefaultCargoDecay,
		CollectRate:   DefaultCollectRate,
		CollectGrowth: DefaultCollectGrowth,
		ReturnDecay:   DefaultReturnDecay,
		LengthPenalty: DefaultLengthPenalty,
	}
}

type Input struct {
	Field *field.Field
	Pos   geom.Position
	Cargo float64
	Base  geom.Position
}

type Result struct {
	// Moves is never empty. When ReturnNow is set it holds the single direct
	// step towards the base.
	Moves     []geom.Move
	Value     float64
	Baseline  float64
	ReturnNow bool
}

// Project simulates moves from in.Pos on a clone of in.Field and returns the
// discounted value of the cargo the unit would hold at the end.
func (p Planner) Project(in Input, moves []geom.Move) float64 {
	g := in.Field.Grid()
	sim := in.Field
	if len(moves) > 0 {
		sim = in.Field.Clone()
	}

	pos, cargo := in.Pos, in.Cargo
	for i, m := range moves {
		if m.IsMove() {
			cargo *= p.CargoDecay
			pos = g.Adjacent(pos, m)
			continue
		}
		cargo += sim.Harvest(pos, p.CollectRate*math.Pow(p.CollectGrowth, float64(i)))
	}

	home := math.Pow(p.ReturnDecay, float64(g.Distance(pos, in.Base)))
	return home * cargo / math.Pow(p.LengthPenalty, float64(len(moves)))
}

// Best evaluates every plan of Depth actions and the go-home baseline.
func (p Planner) Best(in Input) Result {
	g := in.Field.Grid()

	var (
		bestValue float64
		bestMoves []geom.Move
	)
	eachPlan(p.depth(), func(moves []geom.Move) {
		if v := p.Project(in, moves); v > bestValue {
			bestValue = v
			bestMoves = append(bestMoves[:0], moves...)
		}
	})

	baseline := p.Project(in, nil)
	if bestMoves == nil || baseline > bestValue {
		return Result{
			Moves:     []geom.Move{g.DirectMove(in.Pos, in.Base)},
			Value:     baseline,
			Baseline:  baseline,
			ReturnNow: true,
		}
	}
	return Result{Moves: bestMoves, Value: bestValue, Baseline: baseline}
}

func (p Planner) depth() int {
	if p.Depth < 1 {
		return DefaultDepth
	}
	return p.Depth
}

// eachPlan calls fn with every sequence of n actions in lexicographic order of
// geom.Actions. The slice is reused between calls.
func eachPlan(n int, fn func([]geom.Move)) {
	digits := make([]int, n)
	moves := make([]geom.Move, n)
	for {
		for i, d := range digits {
			moves[i] = geom.Actions[d]
		}
		fn(moves)

		i := n - 1
		for ; i >= 0; i-- {
			digits[i]++
			if digits[i] < len(geom.Actions) {
				break
			}
			digits[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
