package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDirection means a direction value outside the closed set reached
	// movement code. It indicates corrupted state and is fatal for a tick.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrIDMismatch is returned when appended agents do not continue the arena's id sequence.
	ErrIDMismatch = errors.New("agent id does not match arena slot")
)

// Arena owns every agent of a run. Agent IDs equal their slot index, so
// lookups are O(1) and IDs never dangle: agents are appended, never removed.
//
// Arena is not synchronized; the engine serializes access.
type Arena struct {
	slots []Agent
}

// NewArena creates an arena from agents whose IDs are 0..len-1 in order.
func NewArena(initial []Agent) (*Arena, error) {
	a := &Arena{slots: make([]Agent, 0, len(initial))}
	if err := a.Append(initial...); err != nil {
		return nil, err
	}
	return a, nil
}

// Len is the number of agents ever added.
func (a *Arena) Len() int {
	return len(a.slots)
}

// At returns the agent with the given id, or nil if out of range.
// The pointer is valid until the next Append.
func (a *Arena) At(id AgentID) *Agent {
	if id < 0 || int(id) >= len(a.slots) {
		return nil
	}
	return &a.slots[id]
}

// Append adds agents. Their IDs must continue the sequence.
func (a *Arena) Append(batch ...Agent) error {
	next := AgentID(len(a.slots))
	for i := range batch {
		if batch[i].ID != next+AgentID(i) {
			return fmt.Errorf("%w: got %d, want %d", ErrIDMismatch, batch[i].ID, next+AgentID(i))
		}
	}
	a.slots = append(a.slots, batch...)
	return nil
}

// Each calls fn with a pointer to every agent in join order. Iteration stops
// at the first error, which is returned.
func (a *Arena) Each(fn func(*Agent) error) error {
	for i := range a.slots {
		if err := fn(&a.slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// Views copies the observer projection of every agent.
func (a *Arena) Views() []View {
	out := make([]View, len(a.slots))
	for i := range a.slots {
		out[i] = a.slots[i].View()
	}
	return out
}
