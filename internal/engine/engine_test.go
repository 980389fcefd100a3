package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/entropy"
)

// Helper: options with a fixed seed and a tick interval long enough that the
// background loop never fires on its own.
func setupOptions(seed uint64) Options {
	opts := DefaultOptions()
	opts.Rand = entropy.NewSeeded(seed, seed^0x9e3779b9)
	opts.TickInterval = time.Hour
	return opts
}

func setupSim(t *testing.T, p Params, opts Options) *Simulation {
	t.Helper()
	s, err := New(p, opts)
	if err != nil {
		t.Fatalf("New(%+v): %v", p, err)
	}
	t.Cleanup(func() { _ = s.End() })
	return s
}

func TestNewRejectsInvalidParams(t *testing.T) {
	cases := []Params{
		{Population: -1, SpreadingFactor: 0.5, MortalityRate: 0.5},
		{Population: 10, SpreadingFactor: 1.5, MortalityRate: 0.5},
		{Population: 10, SpreadingFactor: 0.5, MortalityRate: -0.1},
	}
	for _, p := range cases {
		if _, err := New(p, setupOptions(1)); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("New(%+v) err = %v, want ErrInvalidParams", p, err)
		}
	}

	opts := setupOptions(1)
	opts.Placement = "grid"
	if _, err := New(Params{Population: 1}, opts); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("unknown placement err = %v, want ErrInvalidParams", err)
	}
}

func TestNewSeedsOneInfection(t *testing.T) {
	s := setupSim(t, Params{Population: 50, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(2))

	st := s.Stats()
	if st.State != Initializing || st.Tick != 0 {
		t.Errorf("got state %s tick %d, want initializing at 0", st.State, st.Tick)
	}
	if st.Population != 50 || st.Infected != 1 || st.Healthy != 49 {
		t.Errorf("got pop=%d infected=%d healthy=%d, want 50/1/49", st.Population, st.Infected, st.Healthy)
	}
	if st.Capacity != 0 {
		t.Errorf("capacity = %d, want 0 for 50 agents", st.Capacity)
	}
}

func TestSingleSeedAgentDiesAtTick91(t *testing.T) {
	s := setupSim(t, Params{Population: 1, SpreadingFactor: 1.0, MortalityRate: 0.1}, setupOptions(3))

	for s.Tick() <= 90 {
		if err := s.Step(); err != nil {
			t.Fatalf("Step at tick %d: %v", s.Tick(), err)
		}
		a, _ := s.Agent(0)
		if !a.Alive || !a.Infected {
			t.Fatalf("agent changed before tick 91: executed tick %d, alive=%t infected=%t", s.Tick()-1, a.Alive, a.Infected)
		}
	}
	if err := s.Step(); err != nil {
		t.Fatalf("Step at tick 91: %v", err)
	}
	a, _ := s.Agent(0)
	if a.Alive {
		t.Error("agent should die at tick 91")
	}
	if s.CasualtyCount() != 1 || s.InfectedCount() != 0 {
		t.Errorf("casualties=%d infected=%d, want 1/0", s.CasualtyCount(), s.InfectedCount())
	}
}

func TestTickInvariants(t *testing.T) {
	s := setupSim(t, Params{Population: 300, SpreadingFactor: 1.0, MortalityRate: 0.6}, setupOptions(4))
	l := s.Limits()

	dead := map[agents.AgentID]bool{}
	for i := 0; i < 150; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if i == 60 {
			if err := s.AddAgents(100); err != nil {
				t.Fatalf("AddAgents: %v", err)
			}
		}

		s.mu.RLock()
		err := s.arena.Each(func(a *agents.Agent) error {
			switch {
			case !l.InBounds(a.X, a.Y):
				return fmt.Errorf("agent %d out of bounds at (%d,%d)", a.ID, a.X, a.Y)
			case dead[a.ID] && a.Alive:
				return fmt.Errorf("agent %d came back to life", a.ID)
			case a.Hospitalized != s.hospital.Contains(a.ID):
				return fmt.Errorf("agent %d hospitalized=%t registry=%t", a.ID, a.Hospitalized, s.hospital.Contains(a.ID))
			}
			if !a.Alive {
				dead[a.ID] = true
			}
			return nil
		})
		if err == nil && s.hospital.PatientCount() > s.hospital.Capacity() {
			err = fmt.Errorf("%d patients over capacity %d", s.hospital.PatientCount(), s.hospital.Capacity())
		}
		tick := s.tick
		s.mu.RUnlock()
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}

		st := s.Stats()
		if sum := st.Healthy + st.Infected + st.Hospitalized + st.Casualties; sum != st.Population {
			t.Fatalf("tick %d: counts sum to %d, population %d", st.Tick, sum, st.Population)
		}
	}
	if s.Population() != 400 {
		t.Errorf("population = %d, want 400", s.Population())
	}
}

func TestStatsAveragesOnEmptyPopulation(t *testing.T) {
	s := setupSim(t, Params{Population: 0, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(5))
	st := s.Stats()
	if st.AverageSocialDistance != 0 || st.MaskUsagePercentage != 0 ||
		st.CurrentAverageSocialDistance != 0 || st.CurrentMaskUsagePercentage != 0 {
		t.Errorf("expected zero averages for empty run, got %+v", st)
	}
	if err := s.Step(); err != nil {
		t.Errorf("Step on empty run: %v", err)
	}
}

func TestCurrentAveragesExcludeDeadAgents(t *testing.T) {
	s := setupSim(t, Params{Population: 2, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(6))

	s.mu.Lock()
	a0, a1 := s.arena.At(0), s.arena.At(1)
	a0.SocialDistance, a0.Masked = 8, true
	a1.SocialDistance, a1.Masked = 2, false
	a1.Die()
	s.mu.Unlock()

	if got := s.AverageSocialDistance(); got != 5 {
		t.Errorf("AverageSocialDistance = %f, want 5", got)
	}
	if got := s.MaskUsagePercentage(); got != 50 {
		t.Errorf("MaskUsagePercentage = %f, want 50", got)
	}
	if got := s.CurrentAverageSocialDistance(); got != 8 {
		t.Errorf("CurrentAverageSocialDistance = %f, want 8", got)
	}
	if got := s.CurrentMaskUsagePercentage(); got != 100 {
		t.Errorf("CurrentMaskUsagePercentage = %f, want 100", got)
	}
}

func TestPauseTogglesRoundTrip(t *testing.T) {
	s := setupSim(t, Params{Population: 20, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(7))

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	start := s.Tick()

	if err := s.Pause(); err != nil {
		t.Fatalf("first Pause: %v", err)
	}
	if got := s.State(); got != Paused {
		t.Fatalf("state after first Pause = %s, want paused", got)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("second Pause: %v", err)
	}
	if got := s.State(); got != Running {
		t.Fatalf("state after second Pause = %s, want running", got)
	}
	if got := s.Tick(); got > start+2 {
		t.Errorf("tick advanced to %d from %d, want at most two increments", got, start)
	}
}

func TestRunAndStepGuards(t *testing.T) {
	s := setupSim(t, Params{Population: 5, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(8))

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := s.Run(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run err = %v, want ErrAlreadyRunning", err)
	}
	if err := s.Step(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Step while running err = %v, want ErrAlreadyRunning", err)
	}
	if err := s.Resume(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Resume while running err = %v, want ErrAlreadyRunning", err)
	}
}

func TestEndIsTerminalAndIdempotent(t *testing.T) {
	s := setupSim(t, Params{Population: 5, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(9))
	_, ch := s.Subscribe()

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	tick := s.Tick()
	if err := s.End(); err != nil {
		t.Errorf("second End: %v", err)
	}
	if s.Tick() != tick {
		t.Errorf("second End moved tick from %d to %d", tick, s.Tick())
	}

	for _, call := range []struct {
		name string
		fn   func() error
	}{
		{"Run", s.Run},
		{"Pause", s.Pause},
		{"Step", s.Step},
	} {
		if err := call.fn(); !errors.Is(err, ErrEnded) {
			t.Errorf("%s after End err = %v, want ErrEnded", call.name, err)
		}
	}

	for range ch {
	}
	if _, late := s.Subscribe(); late != nil {
		if _, open := <-late; open {
			t.Error("subscription after End should be closed")
		}
	}
	if s.Population() != 5 {
		t.Errorf("population after End = %d, want agents kept", s.Population())
	}
}

// Helper: puts s in Running with a tick loop that only returns once the
// test closes the worker's done channel.
func setupStuckLoop(s *Simulation) *worker {
	w := &worker{cancel: func() {}, done: make(chan struct{})}
	s.mu.Lock()
	s.state = Running
	s.worker = w
	s.mu.Unlock()
	return w
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestEndRetriedAfterInterruptedWait(t *testing.T) {
	s := setupSim(t, Params{Population: 5, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(12))
	_, ch := s.Subscribe()
	w := setupStuckLoop(s)
	tick := s.Tick()

	if err := s.EndContext(cancelledContext()); !errors.Is(err, ErrInterruptedWait) {
		t.Fatalf("EndContext err = %v, want ErrInterruptedWait", err)
	}
	if s.State() != Ended {
		t.Errorf("state = %s, want ended", s.State())
	}
	if s.Tick() != tick {
		t.Errorf("tick moved to %d before the loop stopped", s.Tick())
	}
	if s.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1 until End completes", s.Subscribers())
	}
	if err := s.EndContext(cancelledContext()); !errors.Is(err, ErrInterruptedWait) {
		t.Errorf("retry while the loop still runs: err = %v, want ErrInterruptedWait", err)
	}

	close(w.done)
	if err := s.End(); err != nil {
		t.Fatalf("retried End: %v", err)
	}
	if s.Tick() != tick+1 {
		t.Errorf("tick after End = %d, want %d", s.Tick(), tick+1)
	}

	timeout := time.After(time.Second)
	for open := true; open; {
		select {
		case _, open = <-ch:
		case <-timeout:
			t.Fatal("subscription still open after End completed")
		}
	}
	if s.Subscribers() != 0 {
		t.Errorf("subscribers = %d after End", s.Subscribers())
	}

	if err := s.End(); err != nil || s.Tick() != tick+1 {
		t.Errorf("third End: err=%v tick=%d, want nil and %d", err, s.Tick(), tick+1)
	}
}

func TestResumeSettlesInterruptedPause(t *testing.T) {
	s := setupSim(t, Params{Population: 5, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(13))
	w := setupStuckLoop(s)
	tick := s.Tick()

	if err := s.PauseContext(cancelledContext()); !errors.Is(err, ErrInterruptedWait) {
		t.Fatalf("PauseContext err = %v, want ErrInterruptedWait", err)
	}
	if s.State() != Paused || s.Tick() != tick {
		t.Errorf("after interrupted pause: state %s tick %d, want paused at %d", s.State(), s.Tick(), tick)
	}

	close(w.done)
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.State() != Running || s.Tick() != tick+1 {
		t.Errorf("after resume: state %s tick %d, want running at %d", s.State(), s.Tick(), tick+1)
	}
}

func TestTickFaultEndsRun(t *testing.T) {
	s := setupSim(t, Params{Population: 3, SpreadingFactor: 0.5, MortalityRate: 0.5}, setupOptions(10))
	_, ch := s.Subscribe()

	s.mu.Lock()
	s.arena.At(1).Direction = agents.Direction(99)
	s.mu.Unlock()

	err := s.Step()
	if !errors.Is(err, agents.ErrInvalidDirection) {
		t.Fatalf("Step err = %v, want ErrInvalidDirection", err)
	}
	if s.State() != Ended {
		t.Errorf("state = %s, want ended", s.State())
	}
	if !errors.Is(s.Fault(), agents.ErrInvalidDirection) {
		t.Errorf("Fault() = %v", s.Fault())
	}
	for range ch {
	}
}

func TestAddAgentsWhileRunning(t *testing.T) {
	opts := setupOptions(11)
	opts.TickInterval = 2 * time.Millisecond
	s := setupSim(t, Params{Population: 100, SpreadingFactor: 0.5, MortalityRate: 0.5}, opts)
	_, ch := s.Subscribe()

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	before := s.Population()
	if err := s.AddAgents(50); err != nil {
		t.Fatalf("AddAgents: %v", err)
	}
	if got := s.Population(); got != before+50 {
		t.Fatalf("population = %d, want %d", got, before+50)
	}

	addedAt := s.Tick()
	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		select {
		case st := <-ch:
			seen = st.Tick > addedAt
		case <-deadline:
			t.Fatal("no tick after AddAgents")
		}
	}

	snap := s.Snapshot()
	if len(snap) != before+50 {
		t.Fatalf("snapshot has %d agents, want %d", len(snap), before+50)
	}
	l := s.Limits()
	for _, v := range snap[before:] {
		if !l.InBounds(v.X, v.Y) {
			t.Errorf("new agent %d at (%d,%d) is off canvas", v.ID, v.X, v.Y)
		}
	}

	if err := s.AddAgents(-1); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("AddAgents(-1) err = %v, want ErrInvalidParams", err)
	}
}

func TestConcurrentReadsDuringRun(t *testing.T) {
	opts := setupOptions(12)
	opts.TickInterval = time.Millisecond
	s := setupSim(t, Params{Population: 200, SpreadingFactor: 0.9, MortalityRate: 0.5}, opts)
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				st := s.Stats()
				if sum := st.Healthy + st.Infected + st.Hospitalized + st.Casualties; sum != st.Population {
					t.Errorf("inconsistent stats: %+v", st)
					return
				}
				_ = s.Snapshot()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 5; j++ {
			_ = s.AddAgent()
		}
	}()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.EndContext(ctx); err != nil {
		t.Fatalf("EndContext: %v", err)
	}
	if s.Population() != 205 {
		t.Errorf("population = %d, want 205", s.Population())
	}
}

func TestControllerLifecycle(t *testing.T) {
	c := NewController(setupOptions(13))
	ctx := context.Background()

	if err := c.Pause(ctx); !errors.Is(err, ErrNoSimulation) {
		t.Errorf("Pause before Start err = %v, want ErrNoSimulation", err)
	}
	if err := c.AddAgent(); !errors.Is(err, ErrNoSimulation) {
		t.Errorf("AddAgent before Start err = %v, want ErrNoSimulation", err)
	}

	var started []*Simulation
	c.OnStart(func(s *Simulation) { started = append(started, s) })

	first, err := c.Start(ctx, Params{Population: 10, SpreadingFactor: 0.5, MortalityRate: 0.5})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.State() != Running {
		t.Errorf("first run state = %s, want running", first.State())
	}
	if err := c.AddAgents(3); err != nil {
		t.Fatalf("AddAgents: %v", err)
	}

	second, err := c.Start(ctx, Params{Population: 4, SpreadingFactor: 0.7, MortalityRate: 0.2})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first.State() != Ended {
		t.Errorf("previous run state = %s, want ended", first.State())
	}
	if first.Population() != 13 {
		t.Errorf("previous run population = %d, want 13", first.Population())
	}
	if c.Current() != second || second.RunID() == first.RunID() {
		t.Error("Start should install a fresh run")
	}
	if len(started) != 2 {
		t.Errorf("OnStart called %d times, want 2", len(started))
	}

	if err := c.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := c.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrEnded) {
		t.Errorf("Resume after End err = %v, want ErrEnded", err)
	}
	if _, err := c.Start(ctx, Params{Population: -5}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Start with bad params err = %v, want ErrInvalidParams", err)
	}
}

func TestRandomDefaultParams(t *testing.T) {
	rng := entropy.NewSeeded(1, 2)
	for i := 0; i < 200; i++ {
		sf := RandomSpreadingFactor(rng)
		mr := RandomMortalityRate(rng)
		if sf < 0.6-1e-9 || sf > 1.0+1e-9 {
			t.Fatalf("spreading factor %f outside [0.6,1.0]", sf)
		}
		if mr < 0.1-1e-9 || mr > 0.9+1e-9 {
			t.Fatalf("mortality %f outside [0.1,0.9]", mr)
		}
	}
}
