// Package entropy provides the goroutine-safe random source shared by the
// agent factory and the interaction engine.
// Seeds come from crypto/rand unless a fixed seed is requested.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand/v2"
	"sync"
)

// Source is a mutex-guarded PCG generator. The zero value is not usable;
// construct with NewSource or NewSeeded.
type Source struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSource creates a Source seeded from crypto/rand.
func NewSource() *Source {
	return NewSeeded(cryptoSeed(), cryptoSeed())
}

// NewSeeded creates a Source from a fixed seed pair. Used by tests.
func NewSeeded(seed1, seed2 uint64) *Source {
	return &Source{rng: mrand.New(mrand.NewPCG(seed1, seed2))}
}

// IntN returns a uniform int in [0, n). Panics if n <= 0, like math/rand.
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Float64 returns a uniform float64 in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Int64 returns a non-negative pseudo-random int64.
func (s *Source) Int64() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64()
}

func cryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to the runtime-seeded global generator.
		slog.Warn("crypto seed unavailable", "error", err)
		return mrand.Uint64()
	}
	return binary.LittleEndian.Uint64(buf[:])
}
