// Package quant provides small numeric helpers shared by the position
// accounting code and its tests.
package quant

// Sign returns -1, 0 or +1 for x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Opposing reports whether a and b are both nonzero and point in opposite
// directions.
func Opposing(a, b float64) bool {
	return a != 0 && b != 0 && Sign(a) != Sign(b)
}
