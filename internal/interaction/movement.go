// Package interaction holds the per-tick algorithms run over the agent
// arena: movement with collision avoidance, contact detection, disease
// transmission, and the mortality and hospital timers.
package interaction

import (
	"log/slog"

	"github.com/newmo-oss/ergo"

	"github.com/talgya/contagion/internal/agents"
)

// Mediator applies the interaction rules. It holds configuration only; all
// mutable state lives in the arena and hospital passed to each call.
type Mediator struct {
	Limits agents.Limits
	Rand   agents.Rand
}

// New creates a Mediator.
func New(limits agents.Limits, rng agents.Rand) *Mediator {
	return &Mediator{Limits: limits, Rand: rng}
}

// footprint is the reserved rectangle for a move. Bounds are exclusive.
type footprint struct {
	minX, minY, maxX, maxY int
}

func (p footprint) contains(x, y int) bool {
	return x > p.minX && x < p.maxX && y > p.minY && y < p.maxY
}

// footprintFor returns the destination footprint for a moving one step in dir, or
// ok=false when the step would leave the canvas.
func (m *Mediator) footprintFor(a *agents.Agent, dir agents.Direction) (p footprint, ok bool, err error) {
	box := m.Limits.Box
	x, y, s := a.X, a.Y, a.Speed
	switch dir {
	case agents.Left:
		if x-s < 0 {
			return p, false, nil
		}
		p = footprint{minX: x - s - 2*box, minY: y - box, maxX: x - s + box, maxY: y + box}
	case agents.Right:
		if x+s >= m.Limits.CanvasX {
			return p, false, nil
		}
		p = footprint{minX: x + s - box, minY: y - box, maxX: x + s + 3*box, maxY: y + box}
	case agents.Up:
		if y-s < 0 {
			return p, false, nil
		}
		p = footprint{minX: x - box, minY: y - s - 2*box, maxX: x + box, maxY: y - s + box}
	case agents.Down:
		if y+s >= m.Limits.CanvasY {
			return p, false, nil
		}
		p = footprint{minX: x - box, minY: y + s - box, maxX: x + box, maxY: y + s + 3*box}
	default:
		return p, false, ergo.Wrap(agents.ErrInvalidDirection, "footprint",
			slog.Int("agent", int(a.ID)), slog.Int("direction", int(dir)))
	}
	return p, true, nil
}

// CanMove reports whether a may take one step in dir: the step stays on the
// canvas and no other agent, alive or dead, sits inside the footprint rectangle.
func (m *Mediator) CanMove(arena *agents.Arena, a *agents.Agent, dir agents.Direction) (bool, error) {
	p, ok, err := m.footprintFor(a, dir)
	if err != nil || !ok {
		return false, err
	}
	blocked := false
	_ = arena.Each(func(o *agents.Agent) error {
		if o.ID != a.ID && p.contains(o.X, o.Y) {
			blocked = true
			return errStop
		}
		return nil
	})
	return !blocked, nil
}

// LegalDirections lists every direction a could move in this tick.
func (m *Mediator) LegalDirections(arena *agents.Arena, a *agents.Agent) ([]agents.Direction, error) {
	var out []agents.Direction
	for _, dir := range agents.Directions {
		ok, err := m.CanMove(arena, a, dir)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, dir)
		}
	}
	return out, nil
}

// Move advances a for this tick. An agent whose interaction has ended is
// released with a fresh random heading; a blocked agent turns to a random
// legal heading; an agent with no legal heading stays put. The retry loop is
// bounded by the number of directions.
func (m *Mediator) Move(arena *agents.Arena, a *agents.Agent, tick int) error {
	for attempt := 0; attempt <= agents.NumDirections; attempt++ {
		if a.InInteraction {
			if tick < a.InteractionEndsAt {
				return nil
			}
			a.EndInteraction()
			a.Direction = agents.RandomDirection(m.Rand)
			continue
		}

		ok, err := m.CanMove(arena, a, a.Direction)
		if err != nil {
			return err
		}
		if ok {
			if err := a.Step(); err != nil {
				return err
			}
			if !m.Limits.InBounds(a.X, a.Y) {
				return ergo.Wrap(ErrOutOfBounds, "move",
					slog.Int("agent", int(a.ID)), slog.Int("x", a.X), slog.Int("y", a.Y))
			}
			return nil
		}

		legal, err := m.LegalDirections(arena, a)
		if err != nil {
			return err
		}
		if len(legal) == 0 {
			return nil
		}
		a.Direction = legal[m.Rand.IntN(len(legal))]
	}
	return nil
}

// MoveAll moves every living agent in join order. Earlier agents win
// contested cells.
func (m *Mediator) MoveAll(arena *agents.Arena, tick int) error {
	return arena.Each(func(a *agents.Agent) error {
		if !a.Alive {
			return nil
		}
		return m.Move(arena, a, tick)
	})
}
