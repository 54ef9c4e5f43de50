package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"halitebot.ai/internal/agent"
	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/tuning"
)

// replay re-runs a fresh planner session over a recorded game and checks that
// every turn's actions are reproduced.
func main() {
	var (
		gameDir    = flag.String("game", "", "game dir containing turns-*.jsonl.zst")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning.yaml for logs without a recorded tuning")
		fromStep   = flag.Int("from_step", 0, "start verifying from step (inclusive)")
		verbose    = flag.Bool("v", false, "log agent faults")
	)
	flag.Parse()

	if *gameDir == "" {
		fmt.Fprintln(os.Stderr, "missing -game")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	turns, err := persistlog.ReadGame(*gameDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read game:", err)
		os.Exit(1)
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "[replay] ", 0)
	}
	checked, err := replayGame(turns, tune, *fromStep, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: game=%s checked=%d turns\n", turns[0].GameID, checked)
}

// gameTuning is the tuning the game was played with: the one recorded on its
// first turn, or fallback patched with the recorded game config for logs that
// predate it.
func gameTuning(first persistlog.TurnRecord, fallback tuning.Tuning) (tuning.Tuning, error) {
	if first.Tuning != nil {
		return *first.Tuning, first.Tuning.Validate()
	}
	t := fallback
	if first.Episode > 0 {
		t.EpisodeSteps = first.Episode
	}
	if first.SpawnCost > 0 {
		t.SpawnCost = first.SpawnCost
	}
	return t, t.Validate()
}

// replayGame runs a fresh planner session over turns and returns how many
// turns from fromStep on were checked against the recorded actions.
func replayGame(turns []persistlog.TurnRecord, fallback tuning.Tuning, fromStep int, logger *log.Logger) (int, error) {
	if len(turns) == 0 {
		return 0, fmt.Errorf("no turns")
	}
	if p := turns[0].Policy; p != "" && p != "planner" {
		return 0, fmt.Errorf("game played by %q; only planner games replay deterministically", p)
	}
	tune, err := gameTuning(turns[0], fallback)
	if err != nil {
		return 0, fmt.Errorf("tuning: %w", err)
	}

	a := agent.New(agent.ConfigFromTuning(tune), logger)
	sess := agent.NewSession()

	var checked int
	for _, rec := range turns {
		snap := agent.SnapshotFromObs(rec.Obs, rec.Size, tune.EpisodeSteps)
		acts, err := a.Turn(sess, snap)
		if err != nil {
			return checked, fmt.Errorf("step %d: %w", rec.Step, err)
		}
		if rec.Step < fromStep {
			continue
		}
		if err := compare(rec.Step, acts, rec.Act.Actions); err != nil {
			return checked, err
		}
		checked++
	}
	return checked, nil
}

func compare(step int, got agent.Actions, want map[string]string) error {
	for id, tok := range want {
		if _, err := protocol.ParseAction(tok); err != nil {
			return fmt.Errorf("step %d: recorded %s: %w", step, id, err)
		}
	}
	ids := map[string]struct{}{}
	for id := range got {
		ids[id] = struct{}{}
	}
	for id := range want {
		ids[id] = struct{}{}
	}
	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	for _, id := range keys {
		if got[id] != want[id] {
			return fmt.Errorf("step %d: %s: got %q want %q", step, id, got[id], want[id])
		}
	}
	return nil
}
