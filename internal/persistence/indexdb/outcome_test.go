package indexdb

import (
	"errors"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	cases := []struct {
		name    string
		rewards []*float64
		player  int
		want    Outcome
	}{
		{"win", []*float64{f(5000), f(4000)}, 0, Win},
		{"loss", []*float64{f(5000), f(4000)}, 1, Loss},
		{"tie", []*float64{f(10), f(10)}, 0, Tie},
		{"null opponent", []*float64{f(1), nil}, 0, Win},
		{"null self", []*float64{nil, f(0)}, 0, Tie},
		{"best of many", []*float64{f(3), f(1), f(4)}, 0, Loss},
	}
	for _, tc := range cases {
		_, _, got, err := Score(tc.rewards, tc.player)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestScore_Errors(t *testing.T) {
	if _, _, _, err := Score([]*float64{f(1)}, 0); !errors.Is(err, ErrNoOpponent) {
		t.Fatalf("single reward: %v", err)
	}
	if _, _, _, err := Score([]*float64{f(1), f(2)}, 2); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestTally_String(t *testing.T) {
	games := [][]*float64{
		{f(2), f(1)},
		{f(2), f(1)},
		{f(1), f(1)},
		{nil, f(1)},
	}
	r, err := Tally(games, 0)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if r.Games != 4 || r.Wins != 2 || r.Ties != 1 || r.Losses != 1 {
		t.Fatalf("rates=%+v", r)
	}
	if got, want := r.String(), "wins=0.5, ties=0.25, losses=0.25"; got != want {
		t.Fatalf("String()=%q want %q", got, want)
	}
	if got := (Rates{}).String(); got != "wins=0, ties=0, losses=0" {
		t.Fatalf("empty String()=%q", got)
	}
}
