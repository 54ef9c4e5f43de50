package mathx

// Mod returns a mod b in [0, b). b must be > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// TorusDelta is the length of the shorter way from a to b on a ring of n cells.
func TorusDelta(a, b, n int) int {
	d := Mod(b-a, n)
	if n-d < d {
		return n - d
	}
	return d
}
