package history

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sample(run string, tick int) Sample {
	return Sample{RunID: run, Tick: tick, Population: 10, Healthy: 10 - tick, Infected: tick}
}

func TestRecordAndRange(t *testing.T) {
	s := setupStore(t)
	run := uuid.NewString()

	var batch []Sample
	for tick := 0; tick < 20; tick++ {
		batch = append(batch, sample(run, tick))
	}
	if err := s.RecordBatch(batch); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	if err := s.Record(sample(uuid.NewString(), 3)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Range(run, 5, 9, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 5 || got[0].Tick != 5 || got[4].Tick != 9 {
		t.Errorf("Range(5,9) returned %d samples starting %+v", len(got), got)
	}

	got, err = s.Range(run, 0, -1, 3)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 || got[2].Tick != 2 {
		t.Errorf("Range limit 3 = %+v", got)
	}

	latest, err := s.Latest(run, 4)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 4 || latest[0].Tick != 16 || latest[3].Tick != 19 {
		t.Errorf("Latest(4) = %+v", latest)
	}
	if latest[3].Infected != 19 {
		t.Errorf("Infected = %d, want 19", latest[3].Infected)
	}
}

func TestRecordReplacesSameTick(t *testing.T) {
	s := setupStore(t)
	run := uuid.NewString()
	_ = s.Record(sample(run, 1))
	again := sample(run, 1)
	again.Casualties = 4
	if err := s.Record(again); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, _ := s.Count(run)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, _ := s.Latest(run, 1)
	if got[0].Casualties != 4 {
		t.Errorf("casualties = %d, want 4", got[0].Casualties)
	}
}

func TestResetDropsRun(t *testing.T) {
	s := setupStore(t)
	id := uuid.New()
	if err := s.BeginRun(id, 0.8, 0.2, time.Now()); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	_ = s.Record(sample(id.String(), 0))

	runs, err := s.Runs()
	if err != nil || len(runs) != 1 || runs[0].MortalityRate != 0.2 {
		t.Fatalf("Runs = %+v, %v", runs, err)
	}
	if err := s.Reset(id.String()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := s.Count(id.String()); n != 0 {
		t.Errorf("count after reset = %d", n)
	}
	if runs, _ := s.Runs(); len(runs) != 0 {
		t.Errorf("runs after reset = %+v", runs)
	}
}

func TestRecorderFollowsRun(t *testing.T) {
	s := setupStore(t)
	rec := NewRecorder(s)

	opts := engine.DefaultOptions()
	opts.Rand = entropy.NewSeeded(21, 22)
	opts.TickInterval = time.Hour
	sim, err := engine.New(engine.Params{Population: 30, SpreadingFactor: 0.7, MortalityRate: 0.4}, opts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	rec.Watch(sim)

	for i := 0; i < 5; i++ {
		if err := sim.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if err := sim.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	rec.Wait()

	run := sim.RunID().String()
	n, err := s.Count(run)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	// tick 0 at Watch, ticks 1..5 from Step, tick 6 after End.
	if n != 7 {
		t.Errorf("recorded %d samples, want 7", n)
	}
	all, _ := s.Range(run, 0, -1, 0)
	for _, sm := range all {
		if sm.Healthy+sm.Infected+sm.Hospitalized+sm.Casualties != sm.Population {
			t.Errorf("tick %d: counts do not partition population: %+v", sm.Tick, sm)
		}
	}
}

func TestSampleOfKeepsBothAverages(t *testing.T) {
	s := setupStore(t)
	st := engine.Stats{
		RunID:                        uuid.New(),
		Tick:                         3,
		Population:                   4,
		Healthy:                      2,
		Casualties:                   2,
		AverageSocialDistance:        2,
		MaskUsagePercentage:          50,
		CurrentAverageSocialDistance: 3,
		CurrentMaskUsagePercentage:   100,
	}
	if err := s.Record(SampleOf(st)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Latest(st.RunID.String(), 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Latest = %+v, %v", got, err)
	}
	sm := got[0]
	if sm.AverageSocialDistance != 2 || sm.MaskUsage != 50 {
		t.Errorf("all-agent averages = %v, %v; want 2, 50", sm.AverageSocialDistance, sm.MaskUsage)
	}
	if sm.CurrentAverageSocialDistance != 3 || sm.CurrentMaskUsage != 100 {
		t.Errorf("current averages = %v, %v; want 3, 100", sm.CurrentAverageSocialDistance, sm.CurrentMaskUsage)
	}
}
