package utils

import (
	"math/rand"
	"time"
)

// RandSource is a seeded random number generator.
// It is not safe for concurrent use; give every goroutine its own source.
type RandSource struct {
	seed int64
	rng  *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// A zero seed selects a time-based seed.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the source was created with
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}

// Coin returns 0 or 1 with equal probability
func (r *RandSource) Coin() uint8 {
	return uint8(r.rng.Intn(2))
}

// Choice returns a uniformly chosen element of values. values must not be empty.
func (r *RandSource) Choice(values []int) int {
	return values[r.rng.Intn(len(values))]
}

// Sample draws k distinct elements of values uniformly without replacement.
// values is left untouched. k is clamped to len(values).
func (r *RandSource) Sample(values []int, k int) []int {
	if k > len(values) {
		k = len(values)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]int, len(values))
	copy(pool, values)
	// partial Fisher-Yates: the first k slots end up holding the sample
	for i := 0; i < k; i++ {
		j := i + r.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Split partitions values into a uniform random sample of size k and the remainder.
// Both returned slices are freshly allocated.
func (r *RandSource) Split(values []int, k int) (picked, rest []int) {
	if k > len(values) {
		k = len(values)
	}
	pool := make([]int, len(values))
	copy(pool, values)
	for i := 0; i < k; i++ {
		j := i + r.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	picked = append([]int(nil), pool[:k]...)
	rest = append([]int(nil), pool[k:]...)
	return picked, rest
}

// DeriveSeed derives an independent seed for stream from base using a
// splitmix64 step. The result is never zero.
func DeriveSeed(base int64, stream int) int64 {
	z := uint64(base) + uint64(stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	seed := int64(z & 0x7fffffffffffffff)
	if seed == 0 {
		return 1
	}
	return seed
}

// Fork returns a new source seeded from this source's seed and stream
func (r *RandSource) Fork(stream int) *RandSource {
	return NewRandSource(DeriveSeed(r.seed, stream))
}
