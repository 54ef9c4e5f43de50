package indexdb

import (
	"errors"
	"fmt"
)

type Outcome string

const (
	Win  Outcome = "win"
	Tie  Outcome = "tie"
	Loss Outcome = "loss"
)

var ErrNoOpponent = errors.New("no opponent reward")

// Score compares player's reward with the best opponent reward. A null reward
// (eliminated player) counts as 0.
func Score(rewards []*float64, player int) (own, bestOther float64, out Outcome, err error) {
	if player < 0 || player >= len(rewards) {
		return 0, 0, "", fmt.Errorf("player %d out of range for %d rewards", player, len(rewards))
	}
	if len(rewards) < 2 {
		return 0, 0, "", ErrNoOpponent
	}
	val := func(r *float64) float64 {
		if r == nil {
			return 0
		}
		return *r
	}
	own = val(rewards[player])
	first := true
	for i, r := range rewards {
		if i == player {
			continue
		}
		if v := val(r); first || v > bestOther {
			bestOther = v
			first = false
		}
	}
	switch {
	case own > bestOther:
		out = Win
	case own < bestOther:
		out = Loss
	default:
		out = Tie
	}
	return own, bestOther, out, nil
}

// Rates counts game outcomes.
type Rates struct {
	Games  int
	Wins   int
	Ties   int
	Losses int
}

func (r *Rates) add(o Outcome, n int) {
	switch o {
	case Win:
		r.Wins += n
	case Tie:
		r.Ties += n
	case Loss:
		r.Losses += n
	default:
		return
	}
	r.Games += n
}

// Tally folds a list of per-game reward vectors, seen by player.
func Tally(games [][]*float64, player int) (Rates, error) {
	var r Rates
	for i, rewards := range games {
		_, _, out, err := Score(rewards, player)
		if err != nil {
			return r, fmt.Errorf("game %d: %w", i, err)
		}
		r.add(out, 1)
	}
	return r, nil
}

func (r Rates) frac(n int) float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(n) / float64(r.Games)
}

// String reports outcome fractions, e.g. "wins=0.7, ties=0.1, losses=0.2".
func (r Rates) String() string {
	return fmt.Sprintf("wins=%v, ties=%v, losses=%v", r.frac(r.Wins), r.frac(r.Ties), r.frac(r.Losses))
}
