// Simulation owns every piece of run state and exposes it through
// synchronized commands and snapshot reads.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
	"github.com/talgya/contagion/internal/hospital"
	"github.com/talgya/contagion/internal/interaction"
)

// DefaultPopulation is the population used when a run does not specify one.
const DefaultPopulation = 400

// Placement strategies for new agents.
const (
	PlacementRandom    = "random"
	PlacementClustered = "clustered"
)

// Params are the user-facing parameters of one run.
type Params struct {
	Population      int     `json:"population"`
	SpreadingFactor float64 `json:"spreading_factor"`
	MortalityRate   float64 `json:"mortality_rate"`
}

// Options are the engine-level settings shared by every run.
type Options struct {
	Limits       agents.Limits
	TickInterval time.Duration // wall-clock time per tick (default 1s)
	ReportEvery  int           // ticks between Info-level reports; 0 disables
	Placement    string        // PlacementRandom or PlacementClustered
	Rand         *entropy.Source
}

// DefaultOptions returns the standard engine settings.
func DefaultOptions() Options {
	return Options{
		Limits:       agents.DefaultLimits(),
		TickInterval: time.Second,
		ReportEvery:  60,
		Placement:    PlacementRandom,
	}
}

// Simulation holds the complete run state. A single RWMutex serializes the
// tick loop, commands and observer reads.
type Simulation struct {
	mu sync.RWMutex

	runID    uuid.UUID
	log      *slog.Logger
	opts     Options
	disease  disease.Disease
	hospital *hospital.Hospital
	arena    *agents.Arena
	factory  *agents.Factory
	mediator *interaction.Mediator

	tick  int   // monotonic while Running, frozen otherwise
	state State // lifecycle
	fault error // first fatal tick error, if any

	worker    *worker // present only while Running
	stopping  *worker // signalled but not yet joined
	owedTicks int     // pause/end increments not yet applied because their wait was interrupted

	subMu   sync.Mutex
	subs    map[int]chan Stats
	nextSub int
}

// New validates p and builds a Simulation, running the initialization step
// synchronously at tick 0.
func New(p Params, opts Options) (*Simulation, error) {
	if p.Population < 0 {
		return nil, fmt.Errorf("%w: population %d is negative", ErrInvalidParams, p.Population)
	}
	d, err := disease.New(p.SpreadingFactor, p.MortalityRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if opts.Limits == (agents.Limits{}) {
		opts.Limits = agents.DefaultLimits()
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Rand == nil {
		opts.Rand = entropy.NewSource()
	}

	var strategy agents.Strategy
	switch opts.Placement {
	case PlacementClustered:
		strategy = agents.NewClusteredStrategy(opts.Rand, opts.Limits, opts.Rand.Int64())
	case PlacementRandom, "":
		strategy = agents.NewRandomStrategy(opts.Rand, opts.Limits)
	default:
		return nil, fmt.Errorf("%w: unknown placement %q", ErrInvalidParams, opts.Placement)
	}

	runID := uuid.New()
	s := &Simulation{
		runID:    runID,
		log:      slog.Default().With("run", runID.String()[:8]),
		opts:     opts,
		disease:  d,
		hospital: hospital.New(p.Population),
		factory:  agents.NewFactory(strategy),
		mediator: interaction.New(opts.Limits, opts.Rand),
		state:    Initializing,
		subs:     make(map[int]chan Stats),
	}
	if err := s.initialize(p.Population); err != nil {
		return nil, err
	}
	s.log.Info("simulation initialized",
		"population", p.Population,
		"disease", d.String(),
		"capacity", s.hospital.Capacity(),
		"placement", opts.Placement,
	)
	return s, nil
}

// initialize is the Initializing step: the starting population with one seed infection.
func (s *Simulation) initialize(population int) error {
	arena, err := agents.NewArena(s.factory.InitializationInstances(population))
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	s.arena = arena
	return nil
}

// RunID identifies this run.
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// Disease returns the run's disease parameters.
func (s *Simulation) Disease() disease.Disease {
	return s.disease
}

// Limits returns the canvas geometry of the run.
func (s *Simulation) Limits() agents.Limits {
	return s.opts.Limits
}

// State returns the current lifecycle state.
func (s *Simulation) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Fault returns the error that aborted the tick loop, or nil.
func (s *Simulation) Fault() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// Tick returns the tick counter.
func (s *Simulation) Tick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Population returns the number of agents ever created in this run.
func (s *Simulation) Population() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arena.Len()
}

// Snapshot copies the render view of every agent.
func (s *Simulation) Snapshot() []agents.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arena.Views()
}

// Agent returns a copy of one agent, or false if id is unknown.
func (s *Simulation) Agent(id agents.AgentID) (agents.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.arena.At(id)
	if a == nil {
		return agents.Agent{}, false
	}
	return *a, true
}

// AddAgent appends one randomly generated agent.
func (s *Simulation) AddAgent() error {
	return s.AddAgents(1)
}

// AddAgents appends count randomly generated agents with ids continuing from
// the current population. New agents take part from the next tick.
func (s *Simulation) AddAgents(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: agent count %d is negative", ErrInvalidParams, count)
	}
	if count == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := agents.AgentID(s.arena.Len())
	if err := s.arena.Append(s.factory.BulkInstances(s.tick, start, count)...); err != nil {
		return fmt.Errorf("add agents: %w", err)
	}
	s.log.Info("agents added", "count", count, "population", s.arena.Len(), "tick", s.tick)
	return nil
}
