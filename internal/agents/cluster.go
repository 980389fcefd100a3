// Clustered placement using simplex noise: agents start in dense "towns"
// separated by sparse countryside instead of a uniform scatter.
package agents

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	clusterScale    = 180.0 // pixels per noise period
	clusterAttempts = 32    // rejection-sampling budget per agent
)

// ClusteredStrategy draws positions from a noise density field and every
// other attribute like RandomStrategy.
type ClusteredStrategy struct {
	*RandomStrategy
	density opensimplex.Noise
	lastX   int
	lastY   int
	drawn   bool
}

// NewClusteredStrategy creates a clustered strategy. The noise seed comes from rng.
func NewClusteredStrategy(rng Rand, limits Limits, seed int64) *ClusteredStrategy {
	return &ClusteredStrategy{
		RandomStrategy: NewRandomStrategy(rng, limits),
		density:        opensimplex.NewNormalized(seed),
	}
}

// X samples a new position and returns its x coordinate. The paired y is
// returned by the following Y call.
func (s *ClusteredStrategy) X() int {
	s.sample()
	s.drawn = true
	return s.lastX
}

// Y returns the y coordinate of the position sampled by X.
func (s *ClusteredStrategy) Y() int {
	if !s.drawn {
		s.sample()
	}
	s.drawn = false
	return s.lastY
}

// Density returns the placement weight in [0, 1) at (x, y).
func (s *ClusteredStrategy) Density(x, y int) float64 {
	v := s.density.Eval2(float64(x)/clusterScale, float64(y)/clusterScale)
	return v * v
}

func (s *ClusteredStrategy) sample() {
	x, y := 0, 0
	for i := 0; i < clusterAttempts; i++ {
		x = s.rng.IntN(s.limits.CanvasX)
		y = s.rng.IntN(s.limits.CanvasY)
		if s.rng.Float64() < s.Density(x, y) {
			break
		}
	}
	s.lastX, s.lastY = x, y
}
