// Package bracket pairs players, hands out problems and decides pairwise winners.
package bracket

import "math/rand/v2"

// Rand is the randomness source used by Shuffle and Assigner.
type Rand interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand uses the auto-seeded math/rand/v2 global source.
var DefaultRand Rand = globalRand{}

// Shuffle returns a uniformly random permutation of items using Fisher-Yates.
// The input slice is not modified.
func Shuffle[T any](items []T, rng Rand) []T {
	if rng == nil {
		rng = DefaultRand
	}
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
