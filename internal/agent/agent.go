// Package agent turns one engine snapshot into one action map.
//
// Each turn the agent spawns a unit when it has none, converts a unit into a
// base when it has no base, and otherwise runs every unit's task machine
// (explore -> collect -> return). A fault in one unit is logged and only that
// unit skips the turn.
package agent

import (
	"io"
	"log"

	"halitebot.ai/internal/agent/cluster"
	"halitebot.ai/internal/agent/planner"
	"halitebot.ai/internal/agent/tasks"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/geom"
	"halitebot.ai/internal/tuning"
)

// Actions maps unit and base ids to action tokens. Entities taking the default
// action are absent.
type Actions map[string]string

// Policy decides one turn. Implementations must not keep per-game state
// outside the Session they are handed.
type Policy interface {
	Name() string
	Turn(sess *Session, snap Snapshot) (Actions, error)
}

type Config struct {
	SpawnCost    float64
	EpisodeSteps int
	Window       int
	ClusterDecay float64
	Planner      planner.Planner
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		SpawnCost:    t.SpawnCost,
		EpisodeSteps: t.EpisodeSteps,
		Window:       t.Cluster.Window,
		ClusterDecay: t.Cluster.Decay,
		Planner: planner.Planner{
			Depth:         t.Planner.Depth,
			CargoDecay:    t.Planner.CargoDecay,
			CollectRate:   t.Planner.CollectRate,
			CollectGrowth: t.Planner.CollectGrowth,
			ReturnDecay:   t.Planner.ReturnDecay,
			LengthPenalty: t.Planner.LengthPenalty,
		},
	}
}

type Agent struct {
	cfg     Config
	machine tasks.Machine
	log     *log.Logger
}

func New(cfg Config, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.ClusterDecay == 0 {
		cfg.ClusterDecay = cluster.DefaultDecay
	}
	return &Agent{
		cfg: cfg,
		machine: tasks.Machine{
			Planner:      cfg.Planner,
			Window:       cfg.Window,
			ClusterDecay: cfg.ClusterDecay,
		},
		log: logger,
	}
}

func (a *Agent) Name() string { return "planner" }

func (a *Agent) Turn(sess *Session, snap Snapshot) (Actions, error) {
	if snap.EpisodeSteps == 0 {
		snap.EpisodeSteps = a.cfg.EpisodeSteps
	}
	b, faults, err := snap.decode()
	if err != nil {
		return nil, err
	}
	for id, err := range faults {
		a.log.Printf("step %d: skip %s: %v", snap.Step, id, err)
	}

	out := bootstrap(sess, snap, b, a.cfg.SpawnCost)
	if len(b.bases) == 0 {
		return out, nil
	}

	for _, u := range b.units {
		move, err := a.decide(sess, snap, b, u)
		if err != nil {
			a.log.Printf("step %d: skip unit %s: %v", snap.Step, u.ID, err)
			continue
		}
		if move.IsMove() {
			out[u.ID] = string(move)
		}
	}
	for _, c := range b.collisions(out) {
		a.log.Printf("step %d: collision: %s", snap.Step, c)
	}
	return out, nil
}

func (a *Agent) decide(sess *Session, snap Snapshot, b board, u Unit) (geom.Move, error) {
	base, err := b.nearestBase(u.Pos)
	if err != nil {
		return geom.Collect, err
	}

	t, err := sess.Task(u.ID)
	if err != nil {
		// First sighting: the unit was just spawned.
		if t, err = a.machine.Begin(b.field, u.Pos); err != nil {
			return geom.Collect, err
		}
	}

	next, d, err := a.machine.Step(tasks.StepContext{
		Field:          b.field,
		Pos:            u.Pos,
		Cargo:          u.Cargo,
		Base:           base.Pos,
		TurnsRemaining: snap.TurnsRemaining(),
	}, t)
	if err != nil {
		return geom.Collect, err
	}
	sess.SetTask(u.ID, next)
	if !d.Emit {
		return geom.Collect, nil
	}
	return d.Move, nil
}

// bootstrap applies the single-unit economy shared by every policy: spawn
// from bases while there is no unit, convert every unit while there is no
// base. It also refreshes the session counters and forgets vanished units.
func bootstrap(sess *Session, snap Snapshot, b board, spawnCost float64) Actions {
	out := Actions{}
	sess.Turn = snap.Step
	sess.Held = snap.Held

	alive := make(map[string]struct{}, len(snap.Units))
	for id := range snap.Units {
		alive[id] = struct{}{}
	}
	sess.prune(alive)

	if len(snap.Units) == 0 {
		for _, base := range b.bases {
			if sess.Held < spawnCost {
				continue
			}
			out[base.ID] = protocol.ActionSpawn
			sess.Held -= spawnCost
			sess.Spawned++
		}
	}
	if len(snap.Bases) == 0 {
		for _, u := range b.units {
			out[u.ID] = protocol.ActionConvert
			sess.Converted++
			_ = sess.Forget(u.ID)
		}
	}
	return out
}
