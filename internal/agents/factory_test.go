package agents

import (
	"errors"
	"testing"

	"github.com/talgya/contagion/internal/entropy"
)

func newTestFactory() *Factory {
	return NewFactory(NewRandomStrategy(entropy.NewSeeded(7, 11), DefaultLimits()))
}

func TestInitializationInstancesSeedsExactlyOneInfection(t *testing.T) {
	f := newTestFactory()
	batch := f.InitializationInstances(200)

	if len(batch) != 200 {
		t.Fatalf("got %d agents, want 200", len(batch))
	}
	infected := 0
	for i, a := range batch {
		if a.ID != AgentID(i) {
			t.Errorf("agent %d has id %d", i, a.ID)
		}
		if a.InfectedAt != 0 {
			t.Errorf("agent %d InfectedAt = %d, want 0", i, a.InfectedAt)
		}
		if a.Infected {
			infected++
		}
		if !a.Alive {
			t.Errorf("agent %d starts dead", i)
		}
	}
	if !batch[0].Infected {
		t.Error("agent 0 must be the seed infection")
	}
	if infected != 1 {
		t.Errorf("infected at init = %d, want 1", infected)
	}
}

func TestInstanceAttributesWithinLimits(t *testing.T) {
	l := DefaultLimits()
	f := newTestFactory()
	for i := 0; i < 500; i++ {
		a := f.Instance(42, AgentID(i))
		if !l.InBounds(a.X, a.Y) {
			t.Fatalf("agent %d out of bounds at (%d,%d)", i, a.X, a.Y)
		}
		if a.Speed < 1 || a.Speed > l.MaxSpeed {
			t.Errorf("speed %d outside [1,%d]", a.Speed, l.MaxSpeed)
		}
		if a.SocialDistance < 0 || a.SocialDistance >= l.MaxSocialDistance {
			t.Errorf("social distance %d outside [0,%d)", a.SocialDistance, l.MaxSocialDistance)
		}
		if a.InteractionTime < 1 || a.InteractionTime > l.MaxInteractionTime {
			t.Errorf("interaction time %d outside [1,%d]", a.InteractionTime, l.MaxInteractionTime)
		}
		if !a.Direction.Valid() {
			t.Errorf("invalid direction %d", a.Direction)
		}
		if a.Infected && a.InfectedAt != 42 {
			t.Errorf("infected agent InfectedAt = %d, want 42", a.InfectedAt)
		}
		if !a.Infected && a.InfectedAt != 0 {
			t.Errorf("healthy agent InfectedAt = %d, want 0", a.InfectedAt)
		}
	}
}

func TestBulkInstancesContinuesIDs(t *testing.T) {
	f := newTestFactory()
	batch := f.BulkInstances(3, 10, 5)
	if len(batch) != 5 {
		t.Fatalf("got %d agents, want 5", len(batch))
	}
	for i, a := range batch {
		if a.ID != AgentID(10+i) {
			t.Errorf("batch[%d].ID = %d, want %d", i, a.ID, 10+i)
		}
	}
	if got := f.BulkInstances(3, 0, 0); got != nil {
		t.Errorf("zero count returned %d agents", len(got))
	}
}

func TestArenaAppendRequiresContiguousIDs(t *testing.T) {
	f := newTestFactory()
	arena, err := NewArena(f.InitializationInstances(3))
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	if err := arena.Append(f.Instance(0, 7)); !errors.Is(err, ErrIDMismatch) {
		t.Errorf("Append with gap: err = %v, want ErrIDMismatch", err)
	}
	if err := arena.Append(f.BulkInstances(0, 3, 2)...); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if arena.Len() != 5 {
		t.Errorf("Len() = %d, want 5", arena.Len())
	}
	if a := arena.At(4); a == nil || a.ID != 4 {
		t.Errorf("At(4) = %v", a)
	}
	if arena.At(5) != nil || arena.At(-1) != nil {
		t.Error("At out of range should be nil")
	}
}

func TestClusteredStrategyStaysOnCanvas(t *testing.T) {
	l := DefaultLimits()
	s := NewClusteredStrategy(entropy.NewSeeded(1, 1), l, 99)
	f := NewFactory(s)
	for _, a := range f.InitializationInstances(300) {
		if !l.InBounds(a.X, a.Y) {
			t.Fatalf("agent %d out of bounds at (%d,%d)", a.ID, a.X, a.Y)
		}
	}
	if d := s.Density(10, 10); d < 0 || d > 1 {
		t.Errorf("Density = %f, want [0,1]", d)
	}
}

func TestStepRejectsInvalidDirection(t *testing.T) {
	a := Agent{ID: 1, X: 10, Y: 10, Speed: 2, Direction: Direction(9), Alive: true}
	if err := a.Step(); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Step err = %v, want ErrInvalidDirection", err)
	}
	a.Direction = Left
	if err := a.Step(); err != nil || a.X != 8 {
		t.Errorf("Step left: x=%d err=%v", a.X, err)
	}
}

func TestDeadAgentCannotBeInfected(t *testing.T) {
	a := Agent{Alive: true}
	a.Die()
	a.Infect(5)
	if a.Infected {
		t.Error("dead agent became infected")
	}
}
