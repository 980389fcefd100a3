package interaction

import (
	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/disease"
)

// Pair is an ordered pair of agents in contact.
type Pair struct {
	Left, Right *agents.Agent
}

// AreInSocialDistance reports whether b is within the social-distance box
// anchored on a. The box uses a's coordinates only, so the test is not
// symmetric in general.
func (m *Mediator) AreInSocialDistance(a, b *agents.Agent) bool {
	sd := min(a.SocialDistance, b.SocialDistance)
	box := m.Limits.Box
	p := footprint{
		minX: a.X - sd - box,
		minY: a.Y - sd - box,
		maxX: a.X + sd + 2*box,
		maxY: a.Y + sd + 2*box,
	}
	return p.contains(b.X, b.Y)
}

// Collisions returns every ordered pair of distinct agents, neither in an
// interaction, that are within social distance. A pair may appear in both
// orders; HandleCollision ignores the second one.
func (m *Mediator) Collisions(arena *agents.Arena) []Pair {
	var out []Pair
	_ = arena.Each(func(p *agents.Agent) error {
		if p.InInteraction {
			return nil
		}
		return arena.Each(func(o *agents.Agent) error {
			if o.InInteraction || o.ID == p.ID {
				return nil
			}
			if m.AreInSocialDistance(p, o) {
				out = append(out, Pair{Left: p, Right: o})
			}
			return nil
		})
	})
	return out
}

// TransmissionProbability is the chance the healthy party catches the
// disease during a contact lasting stayTime ticks at socialDistance, capped at 1.
func TransmissionProbability(d disease.Disease, stayTime, socialDistance int, infected, healthy *agents.Agent) float64 {
	p := d.SpreadingFactor() *
		(1 + float64(stayTime)/10) *
		infected.MaskFactor() *
		healthy.MaskFactor() *
		(1 - float64(socialDistance)/10)
	return min(p, 1.0)
}

// HandleCollision starts an interaction between left and right and, when
// exactly one of them is infected, may transmit the disease. It returns true
// when a new infection occurred. Pairs where either side is already
// interacting are ignored.
func (m *Mediator) HandleCollision(left, right *agents.Agent, d disease.Disease, tick int) bool {
	if left.InInteraction || right.InInteraction {
		return false
	}
	stay := max(left.InteractionTime, right.InteractionTime)
	left.BeginInteraction(tick + stay)
	right.BeginInteraction(tick + stay)

	if left.Infected == right.Infected {
		return false
	}
	infected, healthy := left, right
	if right.Infected {
		infected, healthy = right, left
	}
	sd := min(left.SocialDistance, right.SocialDistance)
	p := TransmissionProbability(d, stay, sd, infected, healthy)
	chance := float64(m.Rand.IntN(10)+1) / 10
	if p < chance || !healthy.Alive {
		return false
	}
	healthy.Infect(tick)
	return true
}
