package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/contagion/internal/engine"
)

// Recorder writes one sample per tick for every run it watches.
type Recorder struct {
	store *Store
	wg    sync.WaitGroup
}

// NewRecorder returns a recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Watch registers sim, records its current state and follows its ticks until
// the run ends. It fits Controller.OnStart.
func (r *Recorder) Watch(sim *engine.Simulation) {
	d := sim.Disease()
	if err := r.store.BeginRun(sim.RunID(), d.SpreadingFactor(), d.MortalityRate(), time.Now()); err != nil {
		slog.Error("history: begin run failed", "run", sim.RunID(), "error", err)
		return
	}
	if err := r.store.Record(SampleOf(sim.Stats())); err != nil {
		slog.Error("history: record failed", "run", sim.RunID(), "error", err)
	}

	_, ch := sim.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		recorded := 0
		batch := make([]Sample, 0, maxBatch)
		for st := range ch {
			batch = append(batch[:0], SampleOf(st))
			batch = drain(ch, batch)
			if err := r.store.RecordBatch(batch); err != nil {
				slog.Error("history: record failed", "run", st.RunID, "from_tick", st.Tick, "samples", len(batch), "error", err)
				continue
			}
			recorded += len(batch)
		}
		slog.Debug("history: run closed", "run", sim.RunID(), "samples", recorded)
	}()
}

// maxBatch bounds how many backlogged ticks go into one transaction.
const maxBatch = 32

// drain appends whatever stats are already buffered on ch without blocking.
func drain(ch <-chan engine.Stats, batch []Sample) []Sample {
	for len(batch) < maxBatch {
		select {
		case st, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, SampleOf(st))
		default:
			return batch
		}
	}
	return batch
}

// Wait blocks until every watched run has ended and been drained.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
