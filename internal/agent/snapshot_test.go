package agent

import (
	"testing"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/geom"
)

func TestSnapshotFromObs(t *testing.T) {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Step:            12,
		Player: protocol.PlayerObs{
			Halite:    3000,
			Shipyards: map[string]int{"y": 118},
			Ships:     map[string]protocol.ShipObs{"s": {Index: 116, Cargo: 40}},
		},
		Halite: make([]float64, 225),
	}
	snap := SnapshotFromObs(obs, 0, 400)
	if snap.boardSize() != 15 {
		t.Fatalf("derived size=%d want 15", snap.boardSize())
	}
	if snap.TurnsRemaining() != 388 {
		t.Fatalf("turns remaining=%d", snap.TurnsRemaining())
	}

	b, faults, err := snap.decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(faults) != 0 {
		t.Fatalf("faults: %v", faults)
	}
	if len(b.units) != 1 || b.units[0].Pos != (geom.Position{X: 7, Y: 11}) || b.units[0].Cargo != 40 {
		t.Fatalf("units=%+v", b.units)
	}
	if len(b.bases) != 1 || b.bases[0].Pos != (geom.Position{X: 7, Y: 13}) {
		t.Fatalf("bases=%+v", b.bases)
	}
}

func TestCollisions(t *testing.T) {
	g := geom.Grid{Size: 5}
	snap := Snapshot{
		Size: 5,
		Units: map[string]UnitObs{
			"a": {Index: g.Index(geom.Position{X: 2, Y: 1})},
			"b": {Index: g.Index(geom.Position{X: 2, Y: 3})},
			"c": {Index: g.Index(geom.Position{X: 0, Y: 0})},
			"d": {Index: g.Index(geom.Position{X: 4, Y: 0})},
		},
		Halite: make([]float64, 25),
	}
	b, _, err := snap.decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// d wraps south onto c.
	hits := b.collisions(Actions{"a": protocol.ActionEast, "b": protocol.ActionWest, "d": protocol.ActionSouth})
	want := []string{"a and b at (2,2)", "c and d at (0,0)"}
	if len(hits) != len(want) || hits[0] != want[0] || hits[1] != want[1] {
		t.Fatalf("collisions=%v want %v", hits, want)
	}

	if hits := b.collisions(Actions{"a": protocol.ActionEast, "b": protocol.ActionConvert}); len(hits) != 0 {
		t.Fatalf("converted unit counted: %v", hits)
	}
}

func TestNearestBase_TieBreaksByID(t *testing.T) {
	g := geom.Grid{Size: 9}
	snap := Snapshot{
		Size: 9,
		Bases: map[string]int{
			"zulu":  g.Index(geom.Position{X: 4, Y: 6}),
			"alpha": g.Index(geom.Position{X: 4, Y: 2}),
		},
		Halite: make([]float64, 81),
	}
	b, _, err := snap.decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	base, err := b.nearestBase(geom.Position{X: 4, Y: 4})
	if err != nil {
		t.Fatalf("nearestBase: %v", err)
	}
	if base.ID != "alpha" {
		t.Fatalf("nearest=%s want alpha", base.ID)
	}

	if _, err := (board{grid: g}).nearestBase(geom.Position{}); err == nil {
		t.Fatalf("expected not-found without bases")
	}
}
