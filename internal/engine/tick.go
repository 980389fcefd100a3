// Package engine provides the simulation aggregate and its tick-based loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/newmo-oss/ergo"

	"github.com/talgya/contagion/internal/interaction"
)

// worker is the background tick loop. done is closed once the loop has
// returned; err is set before that.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Run moves the simulation to Running and starts the tick loop.
func (s *Simulation) Run() error {
	if err := s.join(context.Background()); err != nil {
		return err
	}
	s.settle()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Ended:
		return ErrEnded
	case Running:
		return ErrAlreadyRunning
	case Initializing, Paused:
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	s.state = Running
	s.worker = w
	go s.loop(ctx, w)

	s.log.Info("simulation running", "tick", s.tick, "interval", s.opts.TickInterval)
	return nil
}

// Resume restarts a paused simulation. It is Run under another name.
func (s *Simulation) Resume() error {
	return s.Run()
}

// Pause toggles: a paused simulation resumes, anything else pauses.
func (s *Simulation) Pause() error {
	return s.PauseContext(context.Background())
}

// PauseContext is Pause with a bound on how long to wait for the tick loop.
func (s *Simulation) PauseContext(ctx context.Context) error {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	switch st {
	case Ended:
		return ErrEnded
	case Paused:
		return s.Run()
	case Initializing, Running:
	}
	return s.stop(ctx, Paused)
}

// End stops the simulation for good. Ending twice is a no-op.
func (s *Simulation) End() error {
	return s.EndContext(context.Background())
}

// EndContext is End with a bound on how long to wait for the tick loop.
func (s *Simulation) EndContext(ctx context.Context) error {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st == Ended {
		// Finishes an End whose earlier wait was interrupted.
		if err := s.join(ctx); err != nil {
			return err
		}
		s.settle()
		s.closeSubscribers()
		return nil
	}
	if err := s.stop(ctx, Ended); err != nil {
		return err
	}
	s.closeSubscribers()
	return nil
}

// stop moves to next, signals the tick loop, waits for it and then
// advances the tick counter once. If the wait is interrupted the increment
// stays owed and the next successful join settles it.
func (s *Simulation) stop(ctx context.Context, next State) error {
	s.mu.Lock()
	if s.state == Ended {
		s.mu.Unlock()
		return ErrEnded
	}
	prev := s.state
	s.state = next
	s.owedTicks++
	if w := s.worker; w != nil {
		w.cancel()
		s.stopping = w
		s.worker = nil
	}
	s.mu.Unlock()

	if err := s.join(ctx); err != nil {
		return err
	}
	tick := s.settle()

	s.log.Info("simulation "+next.String(), "from", prev, "tick", tick)
	return nil
}

// settle applies owed pause/end increments and returns the tick counter.
// Callers must have joined the tick loop first.
func (s *Simulation) settle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick += s.owedTicks
	s.owedTicks = 0
	return s.tick
}

// join waits for a signalled tick loop to return.
func (s *Simulation) join(ctx context.Context) error {
	s.mu.RLock()
	w := s.stopping
	s.mu.RUnlock()
	if w == nil {
		return nil
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		return ergo.Wrap(ErrInterruptedWait, "join tick loop", slog.String("cause", ctx.Err().Error()))
	}

	s.mu.Lock()
	if s.stopping == w {
		s.stopping = nil
	}
	s.mu.Unlock()
	return nil
}

// loop fires one tick as soon as the interval has elapsed since the previous
// tick started. A slow tick delays the next one; missed ticks are not replayed.
func (s *Simulation) loop(ctx context.Context, w *worker) {
	defer close(w.done)

	timer := time.NewTimer(s.opts.TickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		started := time.Now()
		stats, ok, err := s.advance(true)
		if err != nil {
			w.err = err
			s.log.Error("tick loop aborted", "error", err, "tick", stats.Tick)
			s.closeSubscribers()
			return
		}
		if !ok {
			return
		}
		s.publish(stats)

		timer.Reset(max(s.opts.TickInterval-time.Since(started), 0))
	}
}

// Step executes exactly one Running tick on the caller's goroutine. It is
// not allowed while the tick loop is active.
func (s *Simulation) Step() error {
	if err := s.join(context.Background()); err != nil {
		return err
	}
	s.settle()
	stats, _, err := s.advance(false)
	if err != nil {
		if s.Fault() != nil {
			s.closeSubscribers()
		}
		return err
	}
	s.publish(stats)
	return nil
}

// advance runs one tick under the write lock. From the loop it only runs while
// the state still loops; ok is false when the loop should exit.
func (s *Simulation) advance(fromLoop bool) (stats Stats, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromLoop {
		if !s.state.loops() {
			return Stats{}, false, nil
		}
	} else {
		switch s.state {
		case Running:
			return Stats{}, false, ErrAlreadyRunning
		case Ended:
			return Stats{}, false, ErrEnded
		case Initializing, Paused:
		}
	}

	if err := s.execute(s.tick); err != nil {
		s.fault = err
		s.state = Ended
		s.worker = nil
		return Stats{Tick: s.tick}, false, err
	}
	s.tick++
	return s.statsLocked(), true, nil
}

// execute is the Running step. The order matters: movement precedes contact
// detection, admission precedes the hospital's own cure/discharge pass, and
// death checks see the post-hospital infection state.
func (s *Simulation) execute(tick int) error {
	if err := s.mediator.MoveAll(s.arena, tick); err != nil {
		return fmt.Errorf("tick %d: move: %w", tick, err)
	}

	pairs := s.mediator.Collisions(s.arena)
	infections := 0
	for _, p := range pairs {
		if s.mediator.HandleCollision(p.Left, p.Right, s.disease, tick) {
			infections++
		}
	}

	admitted := interaction.CheckHospitalTimeForAll(s.arena, s.hospital, tick)
	s.hospital.HandleTick(s.arena, s.arena.Len(), tick)
	deaths := interaction.CheckInfectionTimeForAll(s.arena, s.disease, tick)

	s.log.Debug("tick",
		"tick", tick,
		"contacts", len(pairs),
		"infections", infections,
		"admitted", admitted,
		"deaths", deaths,
	)

	if s.opts.ReportEvery > 0 && tick > 0 && tick%s.opts.ReportEvery == 0 {
		st := s.statsLocked()
		s.log.Info("report",
			"tick", tick,
			"population", humanize.Comma(int64(st.Population)),
			"healthy", humanize.Comma(int64(st.Healthy)),
			"infected", humanize.Comma(int64(st.Infected)),
			"hospitalized", st.Hospitalized,
			"casualties", humanize.Comma(int64(st.Casualties)),
			"ventilators", st.Capacity,
			"mask_usage", fmt.Sprintf("%.1f%%", st.CurrentMaskUsagePercentage),
		)
	}
	return nil
}
