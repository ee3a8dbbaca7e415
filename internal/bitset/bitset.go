// Package bitset provides small generic helpers over unsigned integer bit
// masks, shared by the signal word (kernel package) and the page bitmap
// (internal/mem) so both use the same bit-twiddling primitives instead of
// duplicating them per width.
package bitset

import "golang.org/x/exp/constraints"

// OneHot returns a mask with only bit set.
func OneHot[T constraints.Unsigned](bit int) T {
	return T(1) << T(bit)
}

// Test reports whether bit is set in mask.
func Test[T constraints.Unsigned](mask T, bit int) bool {
	return mask&OneHot[T](bit) != 0
}

// LowestFree returns the index of the lowest clear bit at or above `from`
// and below `width`, and whether one was found.
func LowestFree[T constraints.Unsigned](used T, from, width int) (bit int, ok bool) {
	for b := from; b < width; b++ {
		if !Test(used, b) {
			return b, true
		}
	}
	return 0, false
}

// Popcount returns the number of set bits in mask, up to width bits wide.
func Popcount[T constraints.Unsigned](mask T, width int) int {
	n := 0
	for b := 0; b < width; b++ {
		if Test(mask, b) {
			n++
		}
	}
	return n
}
