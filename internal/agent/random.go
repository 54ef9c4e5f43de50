package agent

import (
	"math/rand"

	"halitebot.ai/internal/sim/geom"
)

// RandomWalker is the baseline opponent: the same spawn/convert bootstrap as
// Agent, then a uniformly random action per unit. The source is injected so a
// seeded walker replays the same game.
type RandomWalker struct {
	rng       *rand.Rand
	spawnCost float64
}

func NewRandomWalker(rng *rand.Rand, spawnCost float64) *RandomWalker {
	return &RandomWalker{rng: rng, spawnCost: spawnCost}
}

func (w *RandomWalker) Name() string { return "random" }

func (w *RandomWalker) Turn(sess *Session, snap Snapshot) (Actions, error) {
	b, _, err := snap.decode()
	if err != nil {
		return nil, err
	}
	out := bootstrap(sess, snap, b, w.spawnCost)
	if len(snap.Bases) == 0 {
		return out, nil
	}
	for _, u := range b.units {
		m := geom.Actions[w.rng.Intn(len(geom.Actions))]
		if m.IsMove() {
			out[u.ID] = string(m)
		}
	}
	return out, nil
}
