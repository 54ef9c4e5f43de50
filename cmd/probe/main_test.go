package main

import (
	"testing"

	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
)

func TestHelloFor_CarriesRecordedConfig(t *testing.T) {
	rec := persistlog.TurnRecord{GameID: "g1", Size: 21, Episode: 300, SpawnCost: 750}
	h := helloFor("g1-replay", 1, rec)
	want := protocol.GameConfig{Size: 21, EpisodeSteps: 300, SpawnCost: 750}
	if h.Config != want {
		t.Fatalf("config=%+v want %+v", h.Config, want)
	}
	if !h.Replay || h.GameID != "g1-replay" || h.Player != 1 || h.Type != protocol.TypeHello {
		t.Fatalf("hello=%+v", h)
	}
}

func TestSameActions(t *testing.T) {
	a := map[string]string{"u1": "NORTH", "b1": "SPAWN"}
	if !sameActions(a, map[string]string{"b1": "SPAWN", "u1": "NORTH"}) {
		t.Fatalf("equal maps reported different")
	}
	if sameActions(a, map[string]string{"u1": "NORTH"}) || sameActions(a, map[string]string{"u1": "SOUTH", "b1": "SPAWN"}) {
		t.Fatalf("different maps reported equal")
	}
}
