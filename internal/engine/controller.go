package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/contagion/internal/agents"
)

// RandomSpreadingFactor draws a spreading factor from {0.6, ..., 1.0}.
func RandomSpreadingFactor(rng agents.Rand) float64 {
	return float64(rng.IntN(5)+6) / 10
}

// RandomMortalityRate draws a mortality rate from {0.1, ..., 0.9}.
func RandomMortalityRate(rng agents.Rand) float64 {
	return float64(rng.IntN(9)+1) / 10
}

// Controller is the command side of the engine. It owns at most one current
// Simulation and replaces it on Start.
type Controller struct {
	mu      sync.Mutex
	opts    Options
	current *Simulation
	onStart []func(*Simulation)
}

// NewController returns a Controller that builds every run with opts.
func NewController(opts Options) *Controller {
	return &Controller{opts: opts}
}

// OnStart registers fn to be called with every new Simulation before it runs.
func (c *Controller) OnStart(fn func(*Simulation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStart = append(c.onStart, fn)
}

// Start ends any previous run, builds a fresh Simulation from p and starts it.
func (c *Controller) Start(ctx context.Context, p Params) (*Simulation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.current; prev != nil {
		if err := prev.EndContext(ctx); err != nil {
			return nil, fmt.Errorf("end previous run: %w", err)
		}
	}

	sim, err := New(p, c.opts)
	if err != nil {
		return nil, err
	}
	for _, fn := range c.onStart {
		fn(sim)
	}
	if err := sim.Run(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	c.current = sim
	slog.Info("run started", "run", sim.RunID(), "population", p.Population)
	return sim, nil
}

// Current returns the current Simulation, or nil before the first Start.
func (c *Controller) Current() *Simulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) sim() (*Simulation, error) {
	sim := c.Current()
	if sim == nil {
		return nil, ErrNoSimulation
	}
	return sim, nil
}

// Pause toggles the current run between Running and Paused.
func (c *Controller) Pause(ctx context.Context) error {
	sim, err := c.sim()
	if err != nil {
		return err
	}
	return sim.PauseContext(ctx)
}

// Resume restarts the current run if it is paused.
func (c *Controller) Resume() error {
	sim, err := c.sim()
	if err != nil {
		return err
	}
	return sim.Resume()
}

// End ends the current run. The run stays current so its final state can be read.
func (c *Controller) End(ctx context.Context) error {
	sim, err := c.sim()
	if err != nil {
		return err
	}
	return sim.EndContext(ctx)
}

// AddAgent adds one agent to the current run.
func (c *Controller) AddAgent() error {
	return c.AddAgents(1)
}

// AddAgents adds count agents to the current run.
func (c *Controller) AddAgents(count int) error {
	sim, err := c.sim()
	if err != nil {
		return err
	}
	return sim.AddAgents(count)
}

// Shutdown ends the current run, if any, within ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	sim := c.Current()
	if sim == nil {
		return nil
	}
	return sim.EndContext(ctx)
}
