package engine

import (
	"github.com/google/uuid"

	"github.com/talgya/contagion/internal/agents"
)

// Stats is a consistent aggregate view of a run at a tick boundary.
//
// The four counts partition the population: hospitalized agents are counted
// only as hospitalized, dead agents only as casualties.
type Stats struct {
	RunID uuid.UUID `json:"run_id"`
	Tick  int       `json:"tick"`
	State State     `json:"state"`

	Population   int `json:"population"`
	Healthy      int `json:"healthy"`
	Infected     int `json:"infected"`
	Hospitalized int `json:"hospitalized"`
	Casualties   int `json:"casualties"`

	Capacity int `json:"capacity"` // ventilators
	Patients int `json:"patients"`

	AverageSocialDistance        float64 `json:"avg_social_distance"`
	MaskUsagePercentage          float64 `json:"mask_usage_pct"`
	CurrentAverageSocialDistance float64 `json:"current_avg_social_distance"`
	CurrentMaskUsagePercentage   float64 `json:"current_mask_usage_pct"`
}

// Stats returns all aggregates computed in a single pass under the read lock.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Simulation) statsLocked() Stats {
	st := Stats{
		RunID:      s.runID,
		Tick:       s.tick,
		State:      s.state,
		Population: s.arena.Len(),
		Capacity:   s.hospital.Capacity(),
		Patients:   s.hospital.PatientCount(),
	}

	var sdAll, sdLive, maskedAll, maskedLive int
	_ = s.arena.Each(func(a *agents.Agent) error {
		sdAll += a.SocialDistance
		if a.Masked {
			maskedAll++
		}
		switch {
		case !a.Alive:
			st.Casualties++
			return nil
		case a.Hospitalized:
			st.Hospitalized++
			return nil
		case a.Infected:
			st.Infected++
		default:
			st.Healthy++
		}
		sdLive += a.SocialDistance
		if a.Masked {
			maskedLive++
		}
		return nil
	})

	live := st.Healthy + st.Infected
	st.AverageSocialDistance = ratio(sdAll, st.Population)
	st.MaskUsagePercentage = 100 * ratio(maskedAll, st.Population)
	st.CurrentAverageSocialDistance = ratio(sdLive, live)
	st.CurrentMaskUsagePercentage = 100 * ratio(maskedLive, live)
	return st
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// HealthyCount is the number of living, uninfected agents outside the hospital.
func (s *Simulation) HealthyCount() int { return s.Stats().Healthy }

// InfectedCount is the number of living infected agents outside the hospital.
func (s *Simulation) InfectedCount() int { return s.Stats().Infected }

// HospitalizedCount is the number of living hospitalized agents.
func (s *Simulation) HospitalizedCount() int { return s.Stats().Hospitalized }

// CasualtyCount is the number of dead agents.
func (s *Simulation) CasualtyCount() int { return s.Stats().Casualties }

// AverageSocialDistance is the mean social distance over every agent ever created.
func (s *Simulation) AverageSocialDistance() float64 { return s.Stats().AverageSocialDistance }

// MaskUsagePercentage is the share of masked agents over every agent ever created.
func (s *Simulation) MaskUsagePercentage() float64 { return s.Stats().MaskUsagePercentage }

// CurrentAverageSocialDistance is the mean over healthy and infected agents only.
func (s *Simulation) CurrentAverageSocialDistance() float64 {
	return s.Stats().CurrentAverageSocialDistance
}

// CurrentMaskUsagePercentage is the masked share of healthy and infected agents only.
func (s *Simulation) CurrentMaskUsagePercentage() float64 {
	return s.Stats().CurrentMaskUsagePercentage
}
