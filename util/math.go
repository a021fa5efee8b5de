package util

import (
	"golang.org/x/exp/constraints"
)

// MinInt returns the smaller one of given integers
func MinInt[T constraints.Integer](x T, y T) T {
	if x < y {
		return x
	}
	return y
}

// MaxInt returns the larger one of given integers
func MaxInt[T constraints.Integer](x T, y T) T {
	if x > y {
		return x
	}
	return y
}

// ClampInt limits the value into [low, high]. The result is low if high < low.
func ClampInt[T constraints.Integer](value T, low T, high T) T {
	return MaxInt(low, MinInt(value, high))
}

// RangeEnd returns from+count limited to size, without overflow for large counts
func RangeEnd(from int, count int, size int) int {
	if count > size-from {
		return size
	}
	return from + count
}
