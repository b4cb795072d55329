package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"slices"
)

// drawWinners samples min(k, len(entrants)) distinct entrants uniformly
// without replacement. Winners are returned in registration order.
func drawWinners(r *rand.Rand, entrants []string, k int) []string {
	n := len(entrants)
	if n == 0 || k <= 0 {
		return []string{}
	}
	k = min(k, n)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates: the first k slots end up a uniform k-subset.
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	picked := idx[:k]
	slices.Sort(picked)

	winners := make([]string, k)
	for i, p := range picked {
		winners[i] = entrants[p]
	}
	return winners
}

// newSeededRand returns a PCG generator seeded from crypto/rand.
func newSeededRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("engine: seed random source: " + err.Error())
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}
