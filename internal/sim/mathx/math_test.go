package mathx

import "testing"

func TestMod(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 15, 0},
		{14, 15, 14},
		{15, 15, 0},
		{-1, 15, 14},
		{-16, 15, 14},
		{31, 15, 1},
	}
	for _, c := range cases {
		if got := Mod(c.a, c.b); got != c.want {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestTorusDelta(t *testing.T) {
	cases := []struct{ a, b, n, want int }{
		{0, 0, 15, 0},
		{0, 14, 15, 1},
		{14, 0, 15, 1},
		{2, 9, 15, 7},
		{2, 10, 15, 7},
		{0, 2, 4, 2},
	}
	for _, c := range cases {
		if got := TorusDelta(c.a, c.b, c.n); got != c.want {
			t.Fatalf("TorusDelta(%d,%d,%d)=%d want %d", c.a, c.b, c.n, got, c.want)
		}
	}
}
