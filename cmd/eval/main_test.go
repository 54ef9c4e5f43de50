package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"halitebot.ai/internal/persistence/archive"
	"halitebot.ai/internal/persistence/indexdb"
	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
)

func archiveGame(t *testing.T, dataDir string, m archive.GameMeta) {
	t.Helper()
	l := persistlog.NewTurnLogger(persistlog.GameDir(dataDir, m.GameID))
	if err := l.WriteTurn(persistlog.TurnRecord{GameID: m.GameID, Act: protocol.NewAct(0, nil)}); err != nil {
		t.Fatalf("WriteTurn: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := archive.ArchiveGame(dataDir, m); err != nil {
		t.Fatalf("ArchiveGame: %v", err)
	}
}

func TestRun_TalliesArchives(t *testing.T) {
	dataDir := t.TempDir()
	one, two := 1.0, 2.0
	archiveGame(t, dataDir, archive.GameMeta{GameID: "g1", Player: 0, Outcome: "win", Rewards: []*float64{&two, &one}})
	archiveGame(t, dataDir, archive.GameMeta{GameID: "g2", Player: 0, Outcome: "loss", Rewards: []*float64{nil, &one}})
	archiveGame(t, dataDir, archive.GameMeta{GameID: "g3", Player: 1, Outcome: "tie", Rewards: []*float64{&one, &one}})

	var out bytes.Buffer
	if err := run(context.Background(), &out, options{dataDir: dataDir, archives: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "games=3\n" +
		"player=0 games=2 wins=0.5, ties=0, losses=0.5\n" +
		"player=1 games=1 wins=0, ties=1, losses=0\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRun_GameTurnCount(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "index", "games.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordGame(indexdb.GameRow{GameID: "g1", Policy: "planner", Size: 15, EpisodeSteps: 400}); err != nil {
		t.Fatalf("RecordGame: %v", err)
	}
	for step := 0; step < 3; step++ {
		idx.RecordTurn(indexdb.TurnRow{GameID: "g1", Step: step, Act: protocol.NewAct(step, nil)})
	}
	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var out bytes.Buffer
	if err := run(ctx, &out, options{dataDir: dataDir, gameID: "g1"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "game=g1 turns=3\n" {
		t.Fatalf("output=%q", got)
	}

	if err := run(ctx, &out, options{dataDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing index")
	}
}
