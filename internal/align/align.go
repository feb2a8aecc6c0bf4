// Package align provides overflow-checked size arithmetic shared by the allocators.
package align

import "math"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false on overflow
// or when either operand is negative. Used for count * elementSize calculations.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Up rounds n up to the next multiple of a. a must be a power of two.
func Up(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// UpPtr rounds an address up to the next multiple of a. a must be a power of two.
func UpPtr(p, a uintptr) uintptr {
	return (p + a - 1) &^ (a - 1)
}

// Down rounds n down to a multiple of a. a must be a power of two.
func Down(n, a int) int {
	return n &^ (a - 1)
}

// UpChecked is Up with overflow detection.
func UpChecked(n, a int) (int, bool) {
	sum, ok := AddOverflowSafe(n, a-1)
	if !ok {
		return 0, false
	}
	return sum &^ (a - 1), true
}

// PagesFor returns the number of whole pages of size pageSize covering n bytes.
func PagesFor(n, pageSize int) int {
	return (n + pageSize - 1) / pageSize
}
