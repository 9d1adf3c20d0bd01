package util

import "math"

// SafeAdd returns a+b, ok is false when the sum doesn't fit into uint64.
func SafeAdd(a, b uint64) (sum uint64, ok bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// SafeSub returns a-b, ok is false when b is greater than a.
func SafeSub(a, b uint64) (diff uint64, ok bool) {
	if a < b {
		return 0, false
	}
	return a - b, true
}

// AbsDiff returns |a-b| and whether a is the larger (or equal) operand.
func AbsDiff(a, b uint64) (diff uint64, aLarger bool) {
	if a >= b {
		return a - b, true
	}
	return b - a, false
}
