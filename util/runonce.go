package util

import (
	"sync/atomic"
)

// RunOnce is a function wrapper that calls the underlying function at most once
//
// Returns true to the caller which actually invoked it. Other callers may return before the invocation ends.
type RunOnce func() bool

// NewRunOnce creates a RunOnce calling the given function
func NewRunOnce(f func()) RunOnce {
	invoked := &atomic.Bool{}
	return func() bool {
		if !invoked.CompareAndSwap(false, true) {
			return false
		}
		f()
		return true
	}
}
