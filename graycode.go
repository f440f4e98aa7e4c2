package so3mip

import "fmt"

// CeilLog2 returns the smallest k such that 2ᵏ >= n. Panics for n < 1.
func CeilLog2(n int) int {
	if n < 1 {
		panic(fmt.Errorf("CeilLog2 is undefined for %d", n))
	}
	k := 0
	for (1 << k) < n {
		k++
	}
	return k
}

// ReflectedGrayCodes returns the 2ᵈⁱᵍⁱᵗˢ reflected Gray codes in numeric
// order: row m encodes m ^ (m >> 1), with the most significant bit in
// column 0. Consecutive rows differ in exactly one bit, which is what makes
// the codes usable for logarithmic SOS2 adjacency. Panics for digits < 0.
func ReflectedGrayCodes(digits int) [][]int {
	if digits < 0 {
		panic(fmt.Errorf("cannot build Gray codes on %d digits", digits))
	}
	codes := make([][]int, 1<<digits)
	for m := range codes {
		g := m ^ (m >> 1)
		row := make([]int, digits)
		for j := 0; j < digits; j++ {
			row[j] = (g >> (digits - 1 - j)) & 1
		}
		codes[m] = row
	}
	return codes
}
