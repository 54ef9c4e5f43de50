package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"halitebot.ai/internal/persistence/archive"
	"halitebot.ai/internal/persistence/indexdb"
)

type options struct {
	dataDir  string
	dbPath   string
	gameID   string
	archives bool
}

func main() {
	var o options
	flag.StringVar(&o.dataDir, "data", "./data", "runtime data directory")
	flag.StringVar(&o.dbPath, "db", "", "index path (default: <data>/index/games.sqlite)")
	flag.StringVar(&o.gameID, "game", "", "print the indexed turn count of one game instead of the summary")
	flag.BoolVar(&o.archives, "archives", false, "tally outcomes from archived meta.json rewards instead of the index")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, os.Stdout, o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, o options) error {
	if o.archives {
		return tallyArchives(w, o.dataDir)
	}

	path := o.dbPath
	if path == "" {
		path = filepath.Join(o.dataDir, "index", "games.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()

	if o.gameID != "" {
		n, err := idx.TurnCount(ctx, o.gameID)
		if err != nil {
			return fmt.Errorf("turn count: %w", err)
		}
		fmt.Fprintf(w, "game=%s turns=%d\n", o.gameID, n)
		return nil
	}

	r, err := idx.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	fmt.Fprintf(w, "games=%d\n%s\n", r.Games, r)
	return nil
}

// tallyArchives re-scores archived games from their recorded rewards, one line
// per seat we played.
func tallyArchives(w io.Writer, dataDir string) error {
	metas, err := archive.List(dataDir)
	if err != nil {
		return fmt.Errorf("archives: %w", err)
	}
	byPlayer := map[int][][]*float64{}
	for _, m := range metas {
		byPlayer[m.Player] = append(byPlayer[m.Player], m.Rewards)
	}
	players := make([]int, 0, len(byPlayer))
	for p := range byPlayer {
		players = append(players, p)
	}
	sort.Ints(players)

	fmt.Fprintf(w, "games=%d\n", len(metas))
	for _, p := range players {
		r, err := indexdb.Tally(byPlayer[p], p)
		if err != nil {
			return fmt.Errorf("player %d: %w", p, err)
		}
		fmt.Fprintf(w, "player=%d games=%d %s\n", p, r.Games, r)
	}
	return nil
}
