package agent

import (
	"fmt"
	"math"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/field"
	"halitebot.ai/internal/sim/geom"
)

// Snapshot is one turn of engine input. Positions are raw board indices; they
// are range-checked per entity when the turn is decided.
type Snapshot struct {
	Step         int
	EpisodeSteps int
	Size         int
	Held         float64
	Bases        map[string]int
	Units        map[string]UnitObs
	Halite       []float64
}

type UnitObs struct {
	Index int
	Cargo float64
}

// SnapshotFromObs converts an OBS message. size and episodeSteps come from the
// game config; size 0 derives the board side from len(obs.Halite).
func SnapshotFromObs(obs protocol.ObsMsg, size, episodeSteps int) Snapshot {
	s := Snapshot{
		Step:         obs.Step,
		EpisodeSteps: episodeSteps,
		Size:         size,
		Held:         obs.Player.Halite,
		Bases:        make(map[string]int, len(obs.Player.Shipyards)),
		Units:        make(map[string]UnitObs, len(obs.Player.Ships)),
		Halite:       obs.Halite,
	}
	for id, idx := range obs.Player.Shipyards {
		s.Bases[id] = idx
	}
	for id, ship := range obs.Player.Ships {
		s.Units[id] = UnitObs{Index: ship.Index, Cargo: ship.Cargo}
	}
	return s
}

func (s Snapshot) boardSize() int {
	if s.Size > 0 {
		return s.Size
	}
	return int(math.Round(math.Sqrt(float64(len(s.Halite)))))
}

// TurnsRemaining counts the turns left after this one is played.
func (s Snapshot) TurnsRemaining() int { return s.EpisodeSteps - s.Step }

func (s Snapshot) field() (*field.Field, error) {
	f, err := field.New(s.boardSize(), s.Halite)
	if err != nil {
		return nil, fmt.Errorf("step %d: %w", s.Step, err)
	}
	return f, nil
}

// Unit is a decoded unit for this turn.
type Unit struct {
	ID    string
	Pos   geom.Position
	Cargo float64
}

// Base is a decoded base.
type Base struct {
	ID  string
	Pos geom.Position
}

type board struct {
	grid  geom.Grid
	field *field.Field
	units []Unit
	bases []Base
}

// decode range-checks every entity. Entities with a bad index are reported in
// faults and left out; the rest of the turn proceeds without them.
func (s Snapshot) decode() (board, map[string]error, error) {
	f, err := s.field()
	if err != nil {
		return board{}, nil, err
	}
	b := board{grid: f.Grid(), field: f}
	faults := map[string]error{}

	for _, id := range sortedKeys(s.Units) {
		u := s.Units[id]
		pos, err := b.grid.FromIndex(u.Index)
		if err != nil {
			faults[id] = fmt.Errorf("unit %s: %w", id, err)
			continue
		}
		b.units = append(b.units, Unit{ID: id, Pos: pos, Cargo: u.Cargo})
	}
	for _, id := range sortedKeys(s.Bases) {
		pos, err := b.grid.FromIndex(s.Bases[id])
		if err != nil {
			faults[id] = fmt.Errorf("base %s: %w", id, err)
			continue
		}
		b.bases = append(b.bases, Base{ID: id, Pos: pos})
	}
	return b, faults, nil
}

// nearestBase breaks distance ties by base id.
func (b board) nearestBase(p geom.Position) (Base, error) {
	best, bestDist := -1, 0
	for i, base := range b.bases {
		d := b.grid.Distance(p, base.Pos)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Base{}, fmt.Errorf("%w: no base reachable from %v", ErrNotFound, p)
	}
	return b.bases[best], nil
}

// collisions lists pairs of our units that out would leave on the same cell.
// The engine destroys both; the agent only reports it.
func (b board) collisions(out Actions) []string {
	first := map[geom.Position]string{}
	var hits []string
	for _, u := range b.units {
		pos := u.Pos
		switch tok := out[u.ID]; {
		case tok == protocol.ActionConvert:
			continue
		case geom.Move(tok).IsMove():
			pos = b.grid.Adjacent(u.Pos, geom.Move(tok))
		}
		if other, ok := first[pos]; ok {
			hits = append(hits, fmt.Sprintf("%s and %s at %v", other, u.ID, pos))
			continue
		}
		first[pos] = u.ID
	}
	return hits
}
