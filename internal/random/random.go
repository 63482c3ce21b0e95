// Package random centralizes the randomized choices made by the collector so
// callers can inject a seeded source and get deterministic behaviour in tests.
package random

import (
	"math/rand/v2"
	"time"
)

// Source is the subset of *rand.Rand the collector needs.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// New returns a Source seeded with seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewDefault returns a Source seeded from the wall clock.
func NewDefault() *rand.Rand {
	return New(uint64(time.Now().UnixNano()))
}

// Between returns an integer in [lo, hi]. If hi < lo, lo is returned.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Uniform returns a float in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Float64()*(hi-lo)
}

// Duration returns a duration in [lo, hi).
func Duration(src Source, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(src.Float64()*float64(hi-lo))
}

// Weighted picks an index with probability proportional to weights[i].
// Non-positive weights are never picked unless every weight is non-positive,
// in which case the choice is uniform. It returns -1 for an empty slice.
func Weighted(src Source, weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return src.IntN(len(weights))
	}
	target := src.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if target < w {
			return i
		}
		target -= w
	}
	// floating point slack: fall back to the last positive weight
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Choice returns a uniformly selected element. items must not be empty.
func Choice[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}
