package cluster

import (
	"errors"
	"testing"

	"halitebot.ai/internal/sim/field"
	"halitebot.ai/internal/sim/geom"
)

func mustField(t *testing.T, size int, cells []float64) *field.Field {
	t.Helper()
	f, err := field.New(size, cells)
	if err != nil {
		t.Fatalf("field.New: %v", err)
	}
	return f
}

func TestFind_EmptyBoardReturnsFirstWindow(t *testing.T) {
	f := mustField(t, 4, make([]float64, 16))
	for k := 1; k <= 4; k++ {
		got, err := Find(f, k, geom.Position{X: 3, Y: 3}, DefaultDecay)
		if err != nil {
			t.Fatalf("Find k=%d: %v", k, err)
		}
		want := geom.Position{X: k / 2, Y: k / 2}
		if got != want {
			t.Fatalf("k=%d: got %v want %v", k, got, want)
		}
	}
}

func TestFind_AscendingBoard(t *testing.T) {
	cells := make([]float64, 16)
	for i := range cells {
		cells[i] = float64(i)
	}
	f := mustField(t, 4, cells)

	got, err := Find(f, 3, geom.Position{X: 2, Y: 2}, DefaultDecay)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != (geom.Position{X: 2, Y: 2}) {
		t.Fatalf("got %v want (2,2)", got)
	}
}

func TestFind_TravelDiscountPrefersNearWindow(t *testing.T) {
	// Two equal piles: one next to the unit, one across the board.
	cells := make([]float64, 15*15)
	cells[1*15+1] = 100
	cells[7*15+7] = 100
	f := mustField(t, 15, cells)

	got, err := Find(f, 1, geom.Position{X: 0, Y: 0}, DefaultDecay)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != (geom.Position{X: 1, Y: 1}) {
		t.Fatalf("got %v want (1,1)", got)
	}

	// A much richer far pile outweighs the discount.
	cells[7*15+7] = 2000
	f = mustField(t, 15, cells)
	got, err = Find(f, 1, geom.Position{X: 0, Y: 0}, DefaultDecay)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != (geom.Position{X: 7, Y: 7}) {
		t.Fatalf("got %v want (7,7)", got)
	}
}

func TestFind_StrictTieKeepsFirst(t *testing.T) {
	cells := make([]float64, 25)
	cells[0*5+2] = 10
	cells[2*5+0] = 10
	f := mustField(t, 5, cells)
	// Both piles are two steps from (0,0); (0,2) is scanned first.
	got, err := Find(f, 1, geom.Position{}, DefaultDecay)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != (geom.Position{X: 0, Y: 2}) {
		t.Fatalf("got %v want (0,2)", got)
	}
}

func TestFind_RejectsBadWindow(t *testing.T) {
	f := mustField(t, 4, make([]float64, 16))
	for _, k := range []int{0, -1, 5} {
		if _, err := Find(f, k, geom.Position{}, DefaultDecay); !errors.Is(err, ErrWindow) {
			t.Fatalf("k=%d: expected ErrWindow, got %v", k, err)
		}
	}
}
