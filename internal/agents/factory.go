// Agent construction: single joins, bulk joins and the initial population.
package agents

// Factory creates agents from a generation Strategy.
type Factory struct {
	strategy Strategy
}

// NewFactory creates a factory backed by the given strategy.
func NewFactory(strategy Strategy) *Factory {
	return &Factory{strategy: strategy}
}

// Instance creates one agent joining at tick. A generated infection starts at tick.
func (f *Factory) Instance(tick int, id AgentID) Agent {
	infected := f.strategy.Infected()
	infectedAt := 0
	if infected {
		infectedAt = tick
	}
	return f.build(id, infected, infectedAt)
}

// BulkInstances creates count agents with ids [startID, startID+count).
func (f *Factory) BulkInstances(tick int, startID AgentID, count int) []Agent {
	if count <= 0 {
		return nil
	}
	out := make([]Agent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, f.Instance(tick, startID+AgentID(i)))
	}
	return out
}

// InitializationInstances creates the starting population with ids [0, count).
// Agent 0 is the single seed infection; everyone else starts healthy.
func (f *Factory) InitializationInstances(count int) []Agent {
	out := make([]Agent, 0, max(count, 0))
	for i := 0; i < count; i++ {
		out = append(out, f.build(AgentID(i), i == 0, 0))
	}
	return out
}

func (f *Factory) build(id AgentID, infected bool, infectedAt int) Agent {
	s := f.strategy
	return Agent{
		ID:              id,
		X:               s.X(),
		Y:               s.Y(),
		Speed:           s.Speed(),
		Direction:       s.Direction(),
		SocialDistance:  s.SocialDistance(),
		InteractionTime: s.InteractionTime(),
		Masked:          s.Masked(),
		Infected:        infected,
		InfectedAt:      infectedAt,
		Alive:           true,
	}
}
