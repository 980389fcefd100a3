package interaction

import (
	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/hospital"
)

// CheckInfectionTime kills an infected agent once its survival window is over.
// It returns true if the agent died on this call.
func CheckInfectionTime(a *agents.Agent, d disease.Disease, tick int) bool {
	if !a.Alive || !a.Infected {
		return false
	}
	if tick > a.InfectedAt+d.SurvivalTicks() {
		a.Die()
		return true
	}
	return false
}

// CheckInfectionTimeForAll applies CheckInfectionTime to every infected agent
// and returns the number of new deaths.
func CheckInfectionTimeForAll(arena *agents.Arena, d disease.Disease, tick int) int {
	deaths := 0
	_ = arena.Each(func(a *agents.Agent) error {
		if CheckInfectionTime(a, d, tick) {
			deaths++
		}
		return nil
	})
	return deaths
}

// CheckHospitalTime admits a once its infection has run ToHospitalTicks.
func CheckHospitalTime(a *agents.Agent, h *hospital.Hospital, tick int) bool {
	if a.Hospitalized || tick <= a.InfectedAt+hospital.ToHospitalTicks {
		return false
	}
	h.Admit(a, tick)
	return true
}

// CheckHospitalTimeForAll tries to admit every living infected agent while
// the hospital has free slots. Capacity is checked before each attempt.
// It returns the number of admissions.
func CheckHospitalTimeForAll(arena *agents.Arena, h *hospital.Hospital, tick int) int {
	admitted := 0
	_ = arena.Each(func(a *agents.Agent) error {
		if a.Alive && a.Infected && h.IsFreeSlotAvailable() {
			if CheckHospitalTime(a, h, tick) {
				admitted++
			}
		}
		return nil
	})
	return admitted
}
