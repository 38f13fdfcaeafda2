// Package rng provides the single seeded random source the simulation
// core draws from. The teacher's selection operators (internal/evo) take a
// *rand.Rand parameter directly rather than wrapping it; Stream keeps that
// idiom. The one addition, Sub, derives a deterministically-seeded child
// stream; the simulation core itself shares a single Stream between the
// network follow models, tweet-bank sampling and KMC event selection.
package rng

import "math/rand"

// Stream is a seeded random source. It is not safe for concurrent use;
// the KMC core is single-threaded by design (spec §5). A separate goroutine
// can hold its own Stream obtained via Sub; no package outside the core
// does so today.
type Stream struct {
	r *rand.Rand
}

// NewStream seeds a new Stream.
func NewStream(seed int64) *Stream {
	return &Stream{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a pseudo-random number in (0,1); a zero draw from the
// underlying source is redrawn.
func (s *Stream) Float64() float64 {
	for {
		if v := s.r.Float64(); v > 0 {
			return v
		}
	}
}

// Intn returns a pseudo-random number in [0,n).
func (s *Stream) Intn(n int) int {
	return s.r.Intn(n)
}

// Uint64 returns a pseudo-random 64-bit value.
func (s *Stream) Uint64() uint64 {
	return s.r.Uint64()
}

// Rand exposes the underlying *rand.Rand for callers that want to pass it
// directly into a function written against the standard library's
// interface, mirroring how the teacher's evo.Selector methods accept
// *rand.Rand rather than a custom wrapper type.
func (s *Stream) Rand() *rand.Rand {
	return s.r
}

// Sub derives a new, independently-seeded Stream from this one. The child
// is deterministic given the parent's state at the time of the call, so a
// run seeded once produces the same sequence of child streams every time.
func (s *Stream) Sub() *Stream {
	return NewStream(int64(s.r.Uint64()))
}
