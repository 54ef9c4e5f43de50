package agenttest

import (
	"fmt"
	"testing"

	"halitebot.ai/internal/agent"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/geom"
)

// Engine is a small deterministic stand-in for the game engine, for driving a
// Policy over many turns in tests. It follows the decision model rather than
// the full game rules:
// - a move relocates the unit and keeps 90% of its cargo
// - a unit without an action collects 25% of its cell
// - a unit on one of our bases deposits all of its cargo
// - SPAWN costs SpawnCost; CONVERT is free and keeps the unit's cargo
//
// There are no opponents and no collisions.
type Engine struct {
	T *testing.T

	Grid         geom.Grid
	EpisodeSteps int
	SpawnCost    float64

	Step   int
	Held   float64
	Halite []float64
	Bases  map[string]geom.Position
	Units  map[string]*Unit

	Deposited float64

	nextID int
}

type Unit struct {
	Pos   geom.Position
	Cargo float64
}

func NewEngine(t *testing.T, size, episodeSteps int, halite []float64, held float64) *Engine {
	t.Helper()
	if len(halite) != size*size {
		t.Fatalf("NewEngine: %d cells for %dx%d board", len(halite), size, size)
	}
	cells := make([]float64, len(halite))
	copy(cells, halite)
	return &Engine{
		T:            t,
		Grid:         geom.Grid{Size: size},
		EpisodeSteps: episodeSteps,
		SpawnCost:    500,
		Held:         held,
		Halite:       cells,
		Bases:        map[string]geom.Position{},
		Units:        map[string]*Unit{},
	}
}

func (e *Engine) AddBase(id string, p geom.Position) { e.Bases[id] = e.Grid.Normalize(p) }

func (e *Engine) AddUnit(id string, p geom.Position, cargo float64) {
	e.Units[id] = &Unit{Pos: e.Grid.Normalize(p), Cargo: cargo}
}

// Snapshot is the engine state as the agent sees it at the start of a turn.
func (e *Engine) Snapshot() agent.Snapshot {
	s := agent.Snapshot{
		Step:         e.Step,
		EpisodeSteps: e.EpisodeSteps,
		Size:         e.Grid.Size,
		Held:         e.Held,
		Bases:        make(map[string]int, len(e.Bases)),
		Units:        make(map[string]agent.UnitObs, len(e.Units)),
		Halite:       append([]float64(nil), e.Halite...),
	}
	for id, p := range e.Bases {
		s.Bases[id] = e.Grid.Index(p)
	}
	for id, u := range e.Units {
		s.Units[id] = agent.UnitObs{Index: e.Grid.Index(u.Pos), Cargo: u.Cargo}
	}
	return s
}

func (e *Engine) onBase(p geom.Position) bool {
	for _, b := range e.Bases {
		if b == p {
			return true
		}
	}
	return false
}

// Apply resolves one turn of actions and advances Step.
func (e *Engine) Apply(actions agent.Actions) {
	e.T.Helper()

	for id, tok := range actions {
		if _, err := protocol.ParseAction(tok); err != nil {
			e.T.Fatalf("step %d: %s: %v", e.Step, id, err)
		}
		switch tok {
		case protocol.ActionSpawn:
			p, ok := e.Bases[id]
			if !ok {
				e.T.Fatalf("step %d: SPAWN from unknown base %q", e.Step, id)
			}
			if e.Held < e.SpawnCost {
				e.T.Fatalf("step %d: SPAWN with %v halite", e.Step, e.Held)
			}
			e.Held -= e.SpawnCost
			e.Units[e.newID("u")] = &Unit{Pos: p}
		case protocol.ActionConvert:
			u, ok := e.Units[id]
			if !ok {
				e.T.Fatalf("step %d: CONVERT of unknown unit %q", e.Step, id)
			}
			e.Bases[e.newID("b")] = u.Pos
			e.Held += u.Cargo
			delete(e.Units, id)
		default:
			u, ok := e.Units[id]
			if !ok {
				e.T.Fatalf("step %d: %s for unknown unit %q", e.Step, tok, id)
			}
			u.Pos = e.Grid.Adjacent(u.Pos, geom.Move(tok))
			u.Cargo *= 0.9
		}
	}

	for id, u := range e.Units {
		if _, acted := actions[id]; !acted {
			i := e.Grid.Index(u.Pos)
			got := 0.25 * e.Halite[i]
			e.Halite[i] -= got
			u.Cargo += got
		}
		if e.onBase(u.Pos) {
			e.Held += u.Cargo
			e.Deposited += u.Cargo
			u.Cargo = 0
		}
	}
	e.Step++
}

// Run plays turns with p and returns every turn's actions.
func (e *Engine) Run(p agent.Policy, sess *agent.Session, turns int) []agent.Actions {
	e.T.Helper()
	out := make([]agent.Actions, 0, turns)
	for i := 0; i < turns && e.Step < e.EpisodeSteps; i++ {
		acts, err := p.Turn(sess, e.Snapshot())
		if err != nil {
			e.T.Fatalf("step %d: %s turn: %v", e.Step, p.Name(), err)
		}
		out = append(out, acts)
		e.Apply(acts)
	}
	return out
}

func (e *Engine) newID(prefix string) string {
	e.nextID++
	return fmt.Sprintf("%s%d-%d", prefix, e.Step, e.nextID)
}
