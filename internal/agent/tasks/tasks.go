package tasks

import (
	"fmt"

	"halitebot.ai/internal/agent/cluster"
	"halitebot.ai/internal/agent/planner"
	"halitebot.ai/internal/sim/field"
	"halitebot.ai/internal/sim/geom"
)

type Kind string

const (
	KindExplore Kind = "EXPLORE"
	KindCollect Kind = "COLLECT"
	KindReturn  Kind = "RETURN"
)

// Task is the unit's current job. Each variant carries its own payload.
type Task interface {
	Kind() Kind
}

// Explore heads for a cluster center.
type Explore struct {
	Target geom.Position
}

// Collect executes the rest of a planner result. An empty Plan means "ask the
// planner on the next step".
type Collect struct {
	Plan []geom.Move
}

// Return heads for the nearest base and stays there.
type Return struct{}

func (Explore) Kind() Kind { return KindExplore }
func (Collect) Kind() Kind { return KindCollect }
func (Return) Kind() Kind  { return KindReturn }

// StepContext is what a unit sees this turn.
type StepContext struct {
	Field          *field.Field
	Pos            geom.Position
	Cargo          float64
	Base           geom.Position
	TurnsRemaining int
}

// Decision is the unit's action. Emit=false means the engine default
// (collect in place).
type Decision struct {
	Move geom.Move
	Emit bool
}

func idle() Decision { return Decision{Move: geom.Collect} }

func emit(m geom.Move) Decision {
	if !m.IsMove() {
		return idle()
	}
	return Decision{Move: m, Emit: true}
}

type Machine struct {
	Planner      planner.Planner
	Window       int
	ClusterDecay float64
}

// Begin is the task of a freshly spawned unit.
func (m Machine) Begin(f *field.Field, pos geom.Position) (Task, error) {
	target, err := cluster.Find(f, m.Window, pos, m.ClusterDecay)
	if err != nil {
		return nil, err
	}
	return Explore{Target: target}, nil
}

// Step advances t by one turn.
func (m Machine) Step(ctx StepContext, t Task) (Task, Decision, error) {
	g := ctx.Field.Grid()
	if ctx.TurnsRemaining <= g.Distance(ctx.Pos, ctx.Base) {
		t = Return{}
	}

	switch t := t.(type) {
	case Explore:
		return m.explore(ctx, t)
	case Collect:
		return m.collect(ctx, t)
	case Return:
		if g.Distance(ctx.Pos, ctx.Base) == 0 {
			return t, idle(), nil
		}
		return t, emit(g.DirectMove(ctx.Pos, ctx.Base)), nil
	default:
		panic(fmt.Sprintf("tasks: unknown task %T", t))
	}
}

func (m Machine) explore(ctx StepContext, t Explore) (Task, Decision, error) {
	g := ctx.Field.Grid()
	if g.Distance(ctx.Pos, t.Target) > 0 {
		return t, emit(g.DirectMove(ctx.Pos, t.Target)), nil
	}
	return Collect{}, idle(), nil
}

func (m Machine) collect(ctx StepContext, t Collect) (Task, Decision, error) {
	if len(t.Plan) > 0 {
		next := t.Plan[0]
		return Collect{Plan: t.Plan[1:]}, emit(next), nil
	}

	if ctx.Pos == ctx.Base {
		target, err := cluster.Find(ctx.Field, m.Window, ctx.Pos, m.ClusterDecay)
		if err != nil {
			return t, idle(), err
		}
		next := Explore{Target: target}
		if ctx.Cargo > 0 {
			// Stay on the base this turn so the cargo is deposited.
			return next, idle(), nil
		}
		if target != ctx.Pos {
			return m.explore(ctx, next)
		}
		// The best cluster is centered on the base itself: plan from here.
	}

	res := m.Planner.Best(planner.Input{
		Field: ctx.Field,
		Pos:   ctx.Pos,
		Cargo: ctx.Cargo,
		Base:  ctx.Base,
	})
	rest := append([]geom.Move(nil), res.Moves[1:]...)
	return Collect{Plan: rest}, emit(res.Moves[0]), nil
}
