package agents

// Rand is the randomness the factory and interaction engine draw from.
// *entropy.Source satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Strategy generates the initial attributes of a new agent.
type Strategy interface {
	X() int
	Y() int
	Speed() int
	Direction() Direction
	SocialDistance() int
	InteractionTime() int
	Masked() bool
	Infected() bool
}

// RandomStrategy draws every attribute uniformly from its Limits range.
type RandomStrategy struct {
	rng    Rand
	limits Limits
}

// NewRandomStrategy creates the default generation strategy.
func NewRandomStrategy(rng Rand, limits Limits) *RandomStrategy {
	return &RandomStrategy{rng: rng, limits: limits}
}

func (s *RandomStrategy) X() int               { return s.rng.IntN(s.limits.CanvasX) }
func (s *RandomStrategy) Y() int               { return s.rng.IntN(s.limits.CanvasY) }
func (s *RandomStrategy) Speed() int           { return s.rng.IntN(s.limits.MaxSpeed) + 1 }
func (s *RandomStrategy) Direction() Direction { return RandomDirection(s.rng) }
func (s *RandomStrategy) SocialDistance() int  { return s.rng.IntN(s.limits.MaxSocialDistance) }
func (s *RandomStrategy) InteractionTime() int { return s.rng.IntN(s.limits.MaxInteractionTime) + 1 }
func (s *RandomStrategy) Masked() bool         { return s.rng.IntN(2) == 0 }
func (s *RandomStrategy) Infected() bool       { return s.rng.IntN(2) == 0 }

// RandomDirection picks one of the four headings uniformly.
func RandomDirection(rng Rand) Direction {
	return Directions[rng.IntN(NumDirections)]
}
