// Package agents provides the agent data model, the arena that owns agents
// for a run, and the factory that builds them from a generation strategy.
package agents

import "fmt"

// AgentID is a unique identifier for an agent. It equals the agent's slot in the Arena.
type AgentID int

// Direction is the heading an agent moves in.
type Direction uint8

const (
	Up Direction = iota
	Down
	Right
	Left
)

// Directions lists every heading in a fixed order.
var Directions = [...]Direction{Up, Down, Right, Left}

// NumDirections is the size of the closed direction set.
const NumDirections = len(Directions)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Right:
		return "right"
	case Left:
		return "left"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Valid reports whether d belongs to the closed direction set.
func (d Direction) Valid() bool {
	return d <= Left
}

// Agent is one simulated person.
type Agent struct {
	ID AgentID `json:"id"`

	// Movement
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Speed     int       `json:"speed"` // pixels per tick, constant
	Direction Direction `json:"direction"`

	// Behavior (constant for the agent's lifetime)
	SocialDistance  int  `json:"social_distance"`
	InteractionTime int  `json:"interaction_time"`
	Masked          bool `json:"masked"`

	// Interaction
	InInteraction     bool `json:"in_interaction"`
	InteractionEndsAt int  `json:"interaction_ends_at"`

	// Health
	Infected       bool `json:"infected"`
	InfectedAt     int  `json:"infected_at"`
	Hospitalized   bool `json:"hospitalized"`
	HospitalizedAt int  `json:"hospitalized_at"`
	Alive          bool `json:"alive"`
}

// MaskFactor dampens transmission: 0.2 when masked, 1.0 otherwise.
func (a *Agent) MaskFactor() float64 {
	if a.Masked {
		return 0.2
	}
	return 1.0
}

// Die marks the agent dead. Death is irreversible.
func (a *Agent) Die() {
	a.Alive = false
}

// Infect starts an infection at tick. Dead agents cannot be infected.
func (a *Agent) Infect(tick int) {
	if !a.Alive {
		return
	}
	a.Infected = true
	a.InfectedAt = tick
}

// Cure clears the infection.
func (a *Agent) Cure() {
	a.Infected = false
	a.InfectedAt = 0
}

// BeginInteraction locks the agent into an interaction until tick `until`.
func (a *Agent) BeginInteraction(until int) {
	a.InInteraction = true
	a.InteractionEndsAt = until
}

// EndInteraction releases the agent from its interaction.
func (a *Agent) EndInteraction() {
	a.InInteraction = false
	a.InteractionEndsAt = 0
}

// Step moves the agent one speed-length step in its current direction.
// Callers must check legality first.
func (a *Agent) Step() error {
	switch a.Direction {
	case Up:
		a.Y -= a.Speed
	case Down:
		a.Y += a.Speed
	case Right:
		a.X += a.Speed
	case Left:
		a.X -= a.Speed
	default:
		return fmt.Errorf("agent %d: %w", a.ID, ErrInvalidDirection)
	}
	return nil
}

// View is the read-only projection handed to observers for rendering.
type View struct {
	ID           AgentID `json:"id"`
	X            int     `json:"x"`
	Y            int     `json:"y"`
	Alive        bool    `json:"alive"`
	Infected     bool    `json:"infected"`
	Hospitalized bool    `json:"hospitalized"`
}

// View returns the observer projection of a.
func (a *Agent) View() View {
	return View{
		ID:           a.ID,
		X:            a.X,
		Y:            a.Y,
		Alive:        a.Alive,
		Infected:     a.Infected,
		Hospitalized: a.Hospitalized,
	}
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent{id=%d pos=(%d,%d) speed=%d dir=%s sd=%d it=%d masked=%t infected=%t@%d hosp=%t@%d alive=%t}",
		a.ID, a.X, a.Y, a.Speed, a.Direction, a.SocialDistance, a.InteractionTime,
		a.Masked, a.Infected, a.InfectedAt, a.Hospitalized, a.HospitalizedAt, a.Alive)
}
