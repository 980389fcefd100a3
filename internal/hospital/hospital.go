// Package hospital models the capacity-limited ventilator ward.
// Capacity tracks population/100 and never shrinks; patients are cured in
// place every tick and discharged once dead or after AtHospitalTicks of care.
package hospital

import (
	"log/slog"

	"github.com/talgya/contagion/internal/agents"
)

const (
	// ToHospitalTicks is how long an infection runs before admission is attempted.
	ToHospitalTicks = 25
	// AtHospitalTicks is how long a patient stays before discharge.
	AtHospitalTicks = 10
	// PopulationPerVentilator sets capacity as population / PopulationPerVentilator.
	PopulationPerVentilator = 100
)

// Hospital is the patient registry. It stores agent IDs, never pointers,
// and is not synchronized; the engine serializes access.
type Hospital struct {
	capacity int
	patients []agents.AgentID           // admission order
	index    map[agents.AgentID]struct{} // membership
}

// New creates a hospital sized for population.
func New(population int) *Hospital {
	return &Hospital{
		capacity: max(population/PopulationPerVentilator, 0),
		index:    make(map[agents.AgentID]struct{}),
	}
}

// Capacity is the current ventilator count.
func (h *Hospital) Capacity() int { return h.capacity }

// PatientCount is the number of admitted patients.
func (h *Hospital) PatientCount() int { return len(h.patients) }

// IsFreeSlotAvailable reports whether another patient can be admitted.
func (h *Hospital) IsFreeSlotAvailable() bool {
	return h.capacity > len(h.patients)
}

// Contains reports whether id is currently admitted.
func (h *Hospital) Contains(id agents.AgentID) bool {
	_, ok := h.index[id]
	return ok
}

// Patients returns a copy of the admitted IDs in admission order.
func (h *Hospital) Patients() []agents.AgentID {
	out := make([]agents.AgentID, len(h.patients))
	copy(out, h.patients)
	return out
}

// Admit hospitalizes a at tick. Admitting an existing patient is a no-op.
func (h *Hospital) Admit(a *agents.Agent, tick int) {
	if h.Contains(a.ID) {
		return
	}
	a.Hospitalized = true
	a.HospitalizedAt = tick
	h.patients = append(h.patients, a.ID)
	h.index[a.ID] = struct{}{}
	slog.Debug("patient admitted", "agent", a.ID, "tick", tick, "patients", len(h.patients), "capacity", h.capacity)
}

// Discharge releases a. The infection is cleared whether or not a survived;
// a dead agent stays dead.
func (h *Hospital) Discharge(a *agents.Agent, tick int) {
	a.Hospitalized = false
	a.HospitalizedAt = 0
	a.Cure()
	h.remove(a.ID)
	slog.Debug("patient discharged", "agent", a.ID, "tick", tick, "alive", a.Alive)
}

// HandleTick grows capacity with population, treats every patient and then
// discharges the dead and those whose stay is over.
func (h *Hospital) HandleTick(arena *agents.Arena, population, tick int) {
	if c := population / PopulationPerVentilator; c > h.capacity {
		h.capacity = c
	}

	for _, id := range h.patients {
		if a := arena.At(id); a != nil {
			a.Cure()
		}
	}

	var leaving []*agents.Agent
	for _, id := range h.patients {
		a := arena.At(id)
		if a == nil {
			continue
		}
		if !a.Alive || tick-a.HospitalizedAt >= AtHospitalTicks {
			leaving = append(leaving, a)
		}
	}
	for _, a := range leaving {
		h.Discharge(a, tick)
	}
}

func (h *Hospital) remove(id agents.AgentID) {
	if _, ok := h.index[id]; !ok {
		return
	}
	delete(h.index, id)
	for i, p := range h.patients {
		if p == id {
			h.patients = append(h.patients[:i], h.patients[i+1:]...)
			return
		}
	}
}
